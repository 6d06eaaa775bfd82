package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	resolveTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askmesh_resolve_turns_total",
			Help: "Total number of resolved conversation turns by source.",
		},
		[]string{"source", "mode"},
	)
	modelLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askmesh_model_latency_ms",
			Help:    "Language model invocation latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"mode", "status"},
	)
	retrievalTablesKept = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askmesh_retrieval_tables_kept",
			Help:    "Number of schema documents kept above the similarity threshold per question.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)
	retrievalDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askmesh_retrieval_degraded_total",
			Help: "Total number of searches answered with empty context because the index is unavailable.",
		},
	)
	gateDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askmesh_gate_denied_total",
			Help: "Total number of statements refused by the safety gate by reason.",
		},
		[]string{"reason"},
	)
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askmesh_executions_total",
			Help: "Total number of statement executions by status.",
		},
		[]string{"status"},
	)
	executionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askmesh_execution_latency_ms",
			Help:    "Statement execution latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000},
		},
	)
	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "askmesh_query_cache_entries",
			Help: "Current number of question to SQL mappings in the exact-match cache.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		resolveTurnsTotal,
		modelLatencyMs,
		retrievalTablesKept,
		retrievalDegradedTotal,
		gateDeniedTotal,
		executionsTotal,
		executionLatencyMs,
		cacheEntries,
	)
}

func ObserveTurn(source, mode string) {
	resolveTurnsTotal.WithLabelValues(source, mode).Inc()
}

func ObserveModelCall(mode string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	modelLatencyMs.WithLabelValues(mode, status).Observe(float64(elapsed.Milliseconds()))
}

func ObserveRetrieval(kept int) {
	retrievalTablesKept.Observe(float64(kept))
}

func IncrementRetrievalDegraded() {
	retrievalDegradedTotal.Inc()
}

func IncrementGateDenied(reason string) {
	gateDeniedTotal.WithLabelValues(reason).Inc()
}

func ObserveExecution(err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	executionsTotal.WithLabelValues(status).Inc()
	executionLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func SetCacheEntries(count int) {
	if count < 0 {
		count = 0
	}
	cacheEntries.Set(float64(count))
}
