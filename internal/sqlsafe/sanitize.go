package sqlsafe

import (
	"regexp"
	"strings"
)

const fence = "```"

var (
	equalityLiteral = regexp.MustCompile(`=\s*"([^"\n]*)"`)
	inList          = regexp.MustCompile(`(?i)\bIN\s*\(([^)]*)\)`)
)

// Sanitize turns raw model output into a statement that can be handed to the
// gate and the database. It never fails; input without fences or double-quoted
// literals comes back trimmed and otherwise unchanged.
func Sanitize(raw string) string {
	text := stripFences(raw)
	if !strings.Contains(text, `"`) {
		return text
	}

	text = normalizeEqualityLiterals(text)
	matches := inList.FindAllStringSubmatchIndex(text, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		start, end := matches[i][2], matches[i][3]
		if rewritten, ok := rewriteLiteralList(text[start:end]); ok {
			text = text[:start] + rewritten + text[end:]
		}
	}
	return text
}

// rewriteLiteralList single-quotes the double-quoted items of an IN list. The
// list is left alone unless every item is a quoted string or a number, so
// subqueries and identifier lists keep their meaning.
func rewriteLiteralList(list string) (string, bool) {
	var out strings.Builder
	i := 0
	for {
		for i < len(list) && isSpace(list[i]) {
			out.WriteByte(list[i])
			i++
		}
		if i == len(list) {
			return "", false
		}
		switch c := list[i]; {
		case c == '"':
			closing := strings.IndexByte(list[i+1:], '"')
			if closing < 0 {
				return "", false
			}
			value := list[i+1 : i+1+closing]
			if strings.ContainsRune(value, '\n') {
				return "", false
			}
			out.WriteString(singleQuote(value))
			i += closing + 2
		case c == '\'':
			j := i + 1
			for {
				closing := strings.IndexByte(list[j:], '\'')
				if closing < 0 {
					return "", false
				}
				j += closing + 1
				if j < len(list) && list[j] == '\'' {
					j++
					continue
				}
				break
			}
			out.WriteString(list[i:j])
			i = j
		case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
			j := i + 1
			for j < len(list) && (list[j] == '.' || (list[j] >= '0' && list[j] <= '9')) {
				j++
			}
			out.WriteString(list[i:j])
			i = j
		default:
			return "", false
		}
		for i < len(list) && isSpace(list[i]) {
			out.WriteByte(list[i])
			i++
		}
		if i == len(list) {
			return out.String(), true
		}
		if list[i] != ',' {
			return "", false
		}
		out.WriteByte(',')
		i++
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// normalizeEqualityLiterals rewrites = "x" to = 'x' unless the quoted text is
// followed by a dot or identifier character, as in = "orders".id.
func normalizeEqualityLiterals(text string) string {
	matches := equalityLiteral.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var out strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if end < len(text) && isIdentifierTail(text[end]) {
			continue
		}
		openQuote := strings.IndexByte(text[start:end], '"') + start
		out.WriteString(text[last:openQuote])
		out.WriteString(singleQuote(text[m[2]:m[3]]))
		last = end
	}
	out.WriteString(text[last:])
	return out.String()
}

func isIdentifierTail(c byte) bool {
	return c == '.' || c == '"' || c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// stripFences removes leading and trailing code fence lines until none remain.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	for {
		before := text
		if strings.HasPrefix(text, fence) {
			text = dropOpeningFence(text)
		}
		if strings.HasSuffix(text, fence) {
			text = strings.TrimSpace(strings.TrimSuffix(text, fence))
		}
		if text == before {
			return text
		}
	}
}

func dropOpeningFence(text string) string {
	rest := strings.TrimPrefix(text, fence)
	if newline := strings.IndexByte(rest, '\n'); newline >= 0 {
		// The remainder of the marker line is a language tag.
		return strings.TrimSpace(rest[newline+1:])
	}
	// Single-line fence such as ```sql SELECT 1```.
	fields := strings.Fields(rest)
	if len(fields) > 1 && isLanguageTag(fields[0]) {
		rest = strings.TrimSpace(rest)
		rest = rest[len(fields[0]):]
	}
	return strings.TrimSpace(rest)
}

func isLanguageTag(word string) bool {
	switch strings.ToLower(word) {
	case "sql", "mysql", "postgresql", "postgres", "sqlite", "duckdb", "tsql", "plsql":
		return true
	default:
		return false
	}
}

func singleQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
