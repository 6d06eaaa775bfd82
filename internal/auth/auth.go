package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

const (
	ScopeAsk     = "ask"
	ScopeHistory = "history"
)

// Identity names the conversation an API key speaks in and what it may do.
type Identity struct {
	Session string
	Scopes  []string
}

func (i Identity) Allows(scope string) bool {
	for _, candidate := range i.Scopes {
		if candidate == scope {
			return true
		}
	}
	return false
}

type KeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

type StaticKeyValidator struct {
	keys map[string]Identity
}

// NewStaticKeyValidator parses "key:session:scope|scope" entries separated by commas.
func NewStaticKeyValidator(raw string) (*StaticKeyValidator, error) {
	validator := &StaticKeyValidator{keys: map[string]Identity{}}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return validator, nil
	}

	for _, entry := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid static key entry %q: expected key:session:scope|scope", entry)
		}
		key := strings.TrimSpace(parts[0])
		session := strings.TrimSpace(parts[1])
		if key == "" || session == "" {
			return nil, fmt.Errorf("invalid static key entry %q: empty key/session", entry)
		}
		if _, dup := validator.keys[key]; dup {
			return nil, fmt.Errorf("duplicate static key for session %q", session)
		}

		scopes := make([]string, 0, 2)
		for _, scope := range strings.Split(strings.TrimSpace(parts[2]), "|") {
			scope = strings.TrimSpace(scope)
			switch scope {
			case "":
				continue
			case ScopeAsk, ScopeHistory:
				scopes = append(scopes, scope)
			default:
				return nil, fmt.Errorf("invalid static key entry %q: unknown scope %q", entry, scope)
			}
		}
		if len(scopes) == 0 {
			return nil, fmt.Errorf("invalid static key entry %q: at least one scope is required", entry)
		}
		sort.Strings(scopes)
		validator.keys[key] = Identity{Session: session, Scopes: scopes}
	}

	return validator, nil
}

func (v *StaticKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[apiKey]
	return identity, ok
}

// Len reports how many keys are configured.
func (v *StaticKeyValidator) Len() int {
	return len(v.keys)
}
