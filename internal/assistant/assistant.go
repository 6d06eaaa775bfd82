// Package assistant binds a resolver and an executor into the question
// loop shared by the chat prompt and the HTTP surface.
package assistant

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/askmesh/askmesh/internal/observability"
	"github.com/askmesh/askmesh/internal/query"
	"github.com/askmesh/askmesh/internal/resolver"
)

// IsExit reports whether input asks to end the conversation.
func IsExit(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit":
		return true
	default:
		return false
	}
}

// Answer is one question's resolution plus, when SQL was produced, its
// execution outcome.
type Answer struct {
	Question string
	Result   resolver.Result
	Outcome  query.Outcome
	Executed bool
	Ended    bool
}

// Message is the one-line notice a surface shows instead of rows.
func (a Answer) Message() string {
	switch {
	case a.Ended:
		return "Goodbye."
	case a.Result.SQL == nil:
		return "No SQL could be produced: " + a.Result.Source.Label()
	case a.Outcome.Denied:
		return "Blocked: " + a.Outcome.Reason
	case a.Outcome.Err != nil:
		return "No results returned (" + a.Outcome.Err.Error() + ")"
	case len(a.Outcome.Rows) == 0:
		return "No results returned"
	default:
		return ""
	}
}

type Assistant struct {
	resolver *resolver.Resolver
	executor *query.Executor
	rowLimit int
	logger   *slog.Logger
}

func New(r *resolver.Resolver, executor *query.Executor, rowLimit int, logger *slog.Logger) *Assistant {
	return &Assistant{resolver: r, executor: executor, rowLimit: rowLimit, logger: observability.OrDiscard(logger)}
}

// Ask resolves question and runs the resulting SQL. An exit sentinel ends the
// conversation and clears the refinement state without recording a turn.
func (a *Assistant) Ask(ctx context.Context, question string) Answer {
	if IsExit(question) {
		a.resolver.Reset()
		return Answer{Question: question, Ended: true}
	}

	result := a.resolver.Resolve(ctx, question)
	answer := Answer{Question: question, Result: result}
	if result.SQL == nil {
		return answer
	}

	ctx = observability.ContextWithTurnID(ctx, result.TurnID)
	answer.Outcome = a.executor.Execute(ctx, *result.SQL, a.rowLimit)
	answer.Executed = true
	a.logger.Debug("question answered",
		slog.String("turn_id", result.TurnID),
		slog.String("source", string(result.Source)),
		slog.Bool("denied", answer.Outcome.Denied),
		slog.Int("rows", len(answer.Outcome.Rows)),
	)
	return answer
}

// Run executes sqlText directly, bypassing resolution but not the gate.
func (a *Assistant) Run(ctx context.Context, sqlText string) query.Outcome {
	return a.executor.Execute(ctx, sqlText, a.rowLimit)
}

func (a *Assistant) History() []resolver.Turn {
	return a.resolver.History()
}

func (a *Assistant) Reset() {
	a.resolver.Reset()
}

func (a *Assistant) State() resolver.State {
	return a.resolver.State()
}

// DefaultMaxSessions bounds a registry created without an explicit limit.
const DefaultMaxSessions = 1000

type SessionLimits struct {
	// Max is the number of live sessions; the least recently used one is
	// dropped to make room. Zero means DefaultMaxSessions.
	Max int
	// IdleTimeout drops sessions unused for longer. Zero keeps them until
	// they are evicted by Max.
	IdleTimeout time.Duration
}

// Sessions hands out one Assistant per session name, created on first use.
// An evicted session starts over with empty state and history.
type Sessions struct {
	create func(session string) *Assistant
	limits SessionLimits
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	assistant *Assistant
	lastUsed  time.Time
}

func NewSessions(create func(session string) *Assistant, limits SessionLimits) *Sessions {
	if limits.Max <= 0 {
		limits.Max = DefaultMaxSessions
	}
	return &Sessions{
		create:   create,
		limits:   limits,
		now:      time.Now,
		sessions: map[string]*sessionEntry{},
	}
}

func (s *Sessions) Get(session string) *Assistant {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.sessions[session]; ok && !s.idle(entry, now) {
		entry.lastUsed = now
		return entry.assistant
	}

	s.evict(now)
	created := s.create(session)
	s.sessions[session] = &sessionEntry{assistant: created, lastUsed: now}
	return created
}

// evict drops idle sessions, then the least recently used ones until a new
// session fits. Callers hold mu.
func (s *Sessions) evict(now time.Time) {
	for name, entry := range s.sessions {
		if s.idle(entry, now) {
			delete(s.sessions, name)
		}
	}
	for len(s.sessions) >= s.limits.Max {
		oldest := ""
		var oldestAt time.Time
		for name, entry := range s.sessions {
			if oldest == "" || entry.lastUsed.Before(oldestAt) {
				oldest, oldestAt = name, entry.lastUsed
			}
		}
		delete(s.sessions, oldest)
	}
}

func (s *Sessions) idle(entry *sessionEntry, now time.Time) bool {
	return s.limits.IdleTimeout > 0 && now.Sub(entry.lastUsed) > s.limits.IdleTimeout
}

// Len is the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Names lists the live sessions.
func (s *Sessions) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sessions))
	for name := range s.sessions {
		names = append(names, name)
	}
	return names
}
