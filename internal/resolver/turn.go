package resolver

import (
	"time"

	"github.com/askmesh/askmesh/internal/nl2sql"
)

// Source records where a turn's SQL came from.
type Source string

const (
	SourceExactCache    Source = "exact_cache"
	SourceModel         Source = "model"
	SourceCacheFallback Source = "cache_fallback"
	SourceError         Source = "error"
)

// Label is the wording shown to people reading the history.
func (s Source) Label() string {
	switch s {
	case SourceExactCache:
		return "Exact-Cache"
	case SourceModel:
		return "Model"
	case SourceCacheFallback:
		return "Cache-Fallback via Exact-Cache"
	case SourceError:
		return "Error (no model, no cache)"
	default:
		return string(s)
	}
}

// Turn is one resolved question. SQL is nil when nothing could be produced.
type Turn struct {
	ID         string      `json:"id"`
	Question   string      `json:"question"`
	SQL        *string     `json:"sql"`
	TablesUsed []string    `json:"tables_used"`
	Source     Source      `json:"source"`
	Mode       nl2sql.Mode `json:"mode,omitempty"`
	At         time.Time   `json:"at"`
}

// SQLText returns the turn's SQL or "" when there is none.
func (t Turn) SQLText() string {
	if t.SQL == nil {
		return ""
	}
	return *t.SQL
}

// State is the refinement state of one conversation.
type State struct {
	CurrentSQL *string
}
