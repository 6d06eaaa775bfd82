package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/askmesh/askmesh/internal/nl2sql"
	"github.com/askmesh/askmesh/internal/observability"
	"github.com/askmesh/askmesh/internal/querycache"
	"github.com/askmesh/askmesh/internal/sqlsafe"
)

// Retriever finds schema text relevant to a question. It never fails; an
// unavailable index answers with ("", []).
type Retriever interface {
	Search(ctx context.Context, question string, threshold float64, topK int) (string, []string)
}

type Options struct {
	SimilarityThreshold float64
	TopK                int
}

// Result is what a surface receives for one question.
type Result struct {
	TurnID     string
	SQL        *string
	TablesUsed []string
	Source     Source
}

// Resolver turns questions into SQL using the cache first and the model
// second, keeping the current statement so follow-ups can refine it. Resolve
// calls are serialized.
type Resolver struct {
	retriever Retriever
	cache     querycache.Store
	model     nl2sql.ModelClient
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	mu      sync.Mutex
	state   State
	history []Turn
}

type Option func(*Resolver)

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(r *Resolver) { r.newID = newID }
}

func New(retriever Retriever, cache querycache.Store, model nl2sql.ModelClient, opts Options, logger *slog.Logger, options ...Option) *Resolver {
	r := &Resolver{
		retriever: retriever,
		cache:     cache,
		model:     model,
		opts:      opts,
		logger:    observability.OrDiscard(logger),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, apply := range options {
		apply(r)
	}
	return r
}

// Resolve never returns an error: every failure is reflected in the result's
// Source and a nil SQL.
func (r *Resolver) Resolve(ctx context.Context, question string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	turnID := r.newID()
	ctx = observability.ContextWithTurnID(ctx, turnID)
	logger := r.logger.With(slog.String("turn_id", turnID))

	schemaContext, tables := r.retrieve(ctx, question)

	var (
		sql    *string
		source Source
		mode   nl2sql.Mode
	)
	if cached, ok := r.lookup(ctx, logger, question); ok {
		sql, source = &cached, SourceExactCache
		logger.Info("serving from exact cache")
	} else {
		prompt := r.prompt(schemaContext, question)
		mode = prompt.Mode
		generated, err := r.generate(ctx, prompt)
		if err != nil {
			logger.Warn("model invocation failed", slog.String("mode", string(mode)), slog.Any("error", err))
			if fallback, ok := r.lookup(ctx, logger, question); ok {
				sql, source = &fallback, SourceCacheFallback
			} else {
				source = SourceError
			}
		} else {
			sql, source = &generated, SourceModel
			if err := r.cache.Store(ctx, question, generated); err != nil {
				logger.Warn("query cache store failed", slog.Any("error", err))
			}
		}
	}

	r.state.CurrentSQL = sql
	turn := Turn{
		ID:         turnID,
		Question:   question,
		SQL:        sql,
		TablesUsed: tables,
		Source:     source,
		Mode:       mode,
		At:         r.now(),
	}
	r.history = append(r.history, turn)
	observability.ObserveTurn(string(source), string(mode))

	return Result{TurnID: turnID, SQL: sql, TablesUsed: tables, Source: source}
}

func (r *Resolver) retrieve(ctx context.Context, question string) (string, []string) {
	if r.retriever == nil {
		return "", []string{}
	}
	schemaContext, tables := r.retriever.Search(ctx, question, r.opts.SimilarityThreshold, r.opts.TopK)
	if tables == nil {
		tables = []string{}
	}
	return schemaContext, tables
}

func (r *Resolver) lookup(ctx context.Context, logger *slog.Logger, question string) (string, bool) {
	sql, err := r.cache.Lookup(ctx, question)
	if err == nil {
		return sql, true
	}
	if !errors.Is(err, querycache.ErrNotFound) {
		logger.Warn("query cache lookup failed", slog.Any("error", err))
	}
	return "", false
}

func (r *Resolver) prompt(schemaContext, question string) nl2sql.Prompt {
	if r.state.CurrentSQL == nil {
		return nl2sql.GenerationPrompt(schemaContext, question)
	}
	return nl2sql.RefinementPrompt(schemaContext, *r.state.CurrentSQL, question)
}

func (r *Resolver) generate(ctx context.Context, prompt nl2sql.Prompt) (string, error) {
	if r.model == nil {
		return "", fmt.Errorf("no language model configured")
	}
	started := time.Now()
	raw, err := r.model.Generate(ctx, prompt)
	if err == nil {
		raw = sqlsafe.Sanitize(raw)
		if raw == "" {
			err = fmt.Errorf("model returned empty SQL")
		}
	}
	observability.ObserveModelCall(string(prompt.Mode), err, time.Since(started))
	if err != nil {
		return "", err
	}
	return raw, nil
}

// State returns a copy of the refinement state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.CurrentSQL == nil {
		return State{}
	}
	current := *r.state.CurrentSQL
	return State{CurrentSQL: &current}
}

// Reset drops the current statement so the next question starts a new one.
// History is kept.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.CurrentSQL = nil
}

// History returns the turns resolved so far, oldest first.
func (r *Resolver) History() []Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Turn, len(r.history))
	copy(out, r.history)
	return out
}
