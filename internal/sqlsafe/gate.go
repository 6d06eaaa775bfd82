package sqlsafe

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrDenied = errors.New("statement denied")

var allowedVerbs = map[string]struct{}{
	"SELECT":   {},
	"SHOW":     {},
	"DESCRIBE": {},
	"EXPLAIN":  {},
}

// WITH is blocked as well, which rejects read-only common table expressions.
var blockedKeywords = map[string]struct{}{
	"INSERT":   {},
	"UPDATE":   {},
	"DELETE":   {},
	"CREATE":   {},
	"ALTER":    {},
	"DROP":     {},
	"TRUNCATE": {},
	"REPLACE":  {},
	"MERGE":    {},
	"GRANT":    {},
	"REVOKE":   {},
	"WITH":     {},
}

// Rule names the check that denied a statement.
type Rule string

const (
	RuleEmpty   Rule = "empty"
	RuleVerb    Rule = "verb"
	RuleKeyword Rule = "keyword"
)

type Decision struct {
	Allowed bool
	Rule    Rule
	Reason  string
}

// Evaluate applies the verb allowlist to the first word and the keyword
// blocklist to every token.
func Evaluate(sqlText string) Decision {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return Decision{Rule: RuleEmpty, Reason: "empty statement"}
	}

	verb := strings.ToUpper(leadingWord(trimmed))
	if _, ok := allowedVerbs[verb]; !ok {
		if verb == "" {
			verb = strings.Fields(trimmed)[0]
		}
		return Decision{
			Rule:   RuleVerb,
			Reason: fmt.Sprintf("statement type %q is not permitted; only SELECT, SHOW, DESCRIBE and EXPLAIN are allowed", verb),
		}
	}

	tokens := strings.FieldsFunc(trimmed, func(r rune) bool {
		return unicode.IsSpace(r) || r == ';'
	})
	for _, token := range tokens {
		word := strings.ToUpper(strings.Trim(token, ",()'\"`"))
		if _, blocked := blockedKeywords[word]; blocked {
			return Decision{Rule: RuleKeyword, Reason: fmt.Sprintf("statement contains blocked keyword %q", word)}
		}
	}
	return Decision{Allowed: true}
}

// Check reports whether sqlText may be executed and, if not, why.
func Check(sqlText string) (bool, string) {
	d := Evaluate(sqlText)
	return d.Allowed, d.Reason
}

func IsPermitted(sqlText string) bool {
	ok, _ := Check(sqlText)
	return ok
}

// Verify is Check in error form; denials wrap ErrDenied.
func Verify(sqlText string) error {
	if ok, reason := Check(sqlText); !ok {
		return fmt.Errorf("%w: %s", ErrDenied, reason)
	}
	return nil
}

func leadingWord(value string) string {
	end := strings.IndexFunc(value, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if end < 0 {
		return value
	}
	return value[:end]
}
