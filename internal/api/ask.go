package api

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/askmesh/askmesh/internal/auth"
	"github.com/askmesh/askmesh/internal/history"
	"github.com/askmesh/askmesh/internal/query"
	"github.com/askmesh/askmesh/internal/resolver"
)

const (
	defaultSession = "default"
	sessionHeader  = "X-Askmesh-Session"
)

var sessionPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Session     string      `json:"session"`
	TurnID      string      `json:"turn_id,omitempty"`
	Question    string      `json:"question"`
	SQL         *string     `json:"sql"`
	TablesUsed  []string    `json:"tables_used"`
	Source      string      `json:"source,omitempty"`
	SourceLabel string      `json:"source_label,omitempty"`
	Columns     []string    `json:"columns"`
	Rows        []query.Row `json:"rows"`
	Denied      bool        `json:"denied"`
	Reason      string      `json:"reason,omitempty"`
	Error       string      `json:"error,omitempty"`
	Message     string      `json:"message,omitempty"`
	Ended       bool        `json:"ended"`
	DurationMs  int64       `json:"duration_ms"`
}

type turnView struct {
	resolver.Turn
	SourceLabel string `json:"source_label"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFor(deps, w, r)
	if !ok {
		return
	}

	var request askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	answer := deps.Sessions.Get(session).Ask(r.Context(), request.Question)
	response := askResponse{
		Session:    session,
		TurnID:     answer.Result.TurnID,
		Question:   request.Question,
		SQL:        answer.Result.SQL,
		TablesUsed: answer.Result.TablesUsed,
		Columns:    answer.Outcome.Columns,
		Rows:       answer.Outcome.Rows,
		Denied:     answer.Outcome.Denied,
		Reason:     answer.Outcome.Reason,
		Message:    answer.Message(),
		Ended:      answer.Ended,
		DurationMs: answer.Outcome.Duration.Milliseconds(),
	}
	if !answer.Ended {
		response.Source = string(answer.Result.Source)
		response.SourceLabel = answer.Result.Source.Label()
	}
	if response.TablesUsed == nil {
		response.TablesUsed = []string{}
	}
	if answer.Outcome.Err != nil {
		response.Error = answer.Outcome.Err.Error()
	}
	writeJSON(w, http.StatusOK, response)
}

func handleHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFor(deps, w, r)
	if !ok {
		return
	}
	turns := deps.Sessions.Get(session).History()
	views := make([]turnView, 0, len(turns))
	for _, turn := range turns {
		views = append(views, turnView{Turn: turn, SourceLabel: turn.Source.Label()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": session, "turns": views})
}

func handleReset(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFor(deps, w, r)
	if !ok {
		return
	}
	deps.Sessions.Get(session).Reset()
	writeJSON(w, http.StatusOK, map[string]any{"session": session, "reset": true})
}

func handleHistoryExport(service string, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.HistoryExport == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_NOT_CONFIGURED", "history export store is not configured", false, nil)
		return
	}
	session, ok := sessionFor(deps, w, r)
	if !ok {
		return
	}
	turns := deps.Sessions.Get(session).History()
	if len(turns) == 0 {
		writeError(r.Context(), w, http.StatusConflict, "HISTORY_EMPTY", "session has no turns to export", false, nil)
		return
	}
	info, err := history.Upload(r.Context(), deps.HistoryExport, service, session, turns, deps.Now())
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "EXPORT_FAILED", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": session,
		"key":     info.Key,
		"turns":   len(turns),
	})
}

func handleTables(deps Dependencies, w http.ResponseWriter, _ *http.Request) {
	tables := deps.Tables
	if tables == nil {
		tables = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

// sessionFor picks the conversation for the request: the API key's session
// when authenticated, else the session header, else the default.
func sessionFor(deps Dependencies, w http.ResponseWriter, r *http.Request) (string, bool) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return "", false
	}
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.Session, true
	}
	session := strings.TrimSpace(r.Header.Get(sessionHeader))
	if session == "" {
		return defaultSession, true
	}
	if !sessionPattern.MatchString(session) {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_SESSION", "invalid session name", false, map[string]any{"session": session})
		return "", false
	}
	return session, true
}
