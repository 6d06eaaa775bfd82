package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/askmesh/askmesh/internal/observability"
	"github.com/askmesh/askmesh/internal/sqlsafe"
)

var ErrNoSQL = errors.New("no SQL to execute")

// Outcome is the result of one execution attempt. Rows is nil whenever the
// statement was denied or failed; a statement without a row set yields an
// empty, non-nil Rows.
type Outcome struct {
	SQL      string
	Columns  []string
	Rows     []Row
	Denied   bool
	Reason   string
	Err      error
	Duration time.Duration
}

// Usable reports whether the outcome carries rows to show.
func (o Outcome) Usable() bool {
	return !o.Denied && o.Err == nil && o.Rows != nil
}

type Executor struct {
	engine  Engine
	logger  *slog.Logger
	timeout time.Duration
}

// NewExecutor wraps engine with the safety gate. A positive timeout bounds
// each statement.
func NewExecutor(engine Engine, timeout time.Duration, logger *slog.Logger) *Executor {
	return &Executor{engine: engine, timeout: timeout, logger: observability.OrDiscard(logger)}
}

// Execute sanitizes sqlText, checks it against the gate and runs it. The
// engine is never called for a denied statement.
func (e *Executor) Execute(ctx context.Context, sqlText string, rowLimit int) Outcome {
	statement := sqlsafe.Sanitize(sqlText)
	if statement == "" {
		return Outcome{Err: ErrNoSQL}
	}

	decision := sqlsafe.Evaluate(statement)
	if !decision.Allowed {
		observability.IncrementGateDenied(string(decision.Rule))
		e.logger.Info("statement denied",
			slog.String("turn_id", observability.TurnIDFromContext(ctx)),
			slog.String("rule", string(decision.Rule)),
			slog.String("reason", decision.Reason),
		)
		return Outcome{SQL: statement, Denied: true, Reason: decision.Reason}
	}

	if e.engine == nil {
		return Outcome{SQL: statement, Err: fmt.Errorf("no database configured")}
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	started := time.Now()
	result, err := e.engine.Execute(ctx, Request{SQL: statement, RowLimit: rowLimit})
	elapsed := time.Since(started)
	observability.ObserveExecution(err, elapsed)
	if err != nil {
		e.logger.Warn("sql execution failed",
			slog.String("turn_id", observability.TurnIDFromContext(ctx)),
			slog.String("sql", statement),
			slog.Any("error", err),
		)
		return Outcome{SQL: statement, Err: err, Duration: elapsed}
	}

	rows := make([]Row, 0, len(result.Rows))
	for _, values := range result.Rows {
		if rowLimit > 0 && len(rows) >= rowLimit {
			break
		}
		rows = append(rows, NewRow(result.Columns, values))
	}
	return Outcome{
		SQL:      statement,
		Columns:  result.Columns,
		Rows:     rows,
		Duration: elapsed,
	}
}
