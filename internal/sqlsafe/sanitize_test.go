package sqlsafe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var sanitizeCases = []struct {
	name string
	in   string
	want string
}{
	{name: "sql fence", in: "```sql\nSELECT * FROM users\n```", want: "SELECT * FROM users"},
	{name: "upper case tag", in: "```SQL\nSELECT 1\n```", want: "SELECT 1"},
	{name: "other language tag", in: "```mysql\nSELECT id FROM orders\n```", want: "SELECT id FROM orders"},
	{name: "bare fence", in: "```\nSELECT 1\n```", want: "SELECT 1"},
	{name: "single line fence", in: "```sql SELECT 1```", want: "SELECT 1"},
	{name: "nested fences", in: "```\n```sql\nSELECT 1\n```\n```", want: "SELECT 1"},
	{name: "surrounding whitespace", in: "  \n SELECT 1 \n\t", want: "SELECT 1"},
	{name: "trailing fence only", in: "SELECT 1\n```", want: "SELECT 1"},
	{name: "equality literal", in: `SELECT * FROM users WHERE name = "bob"`, want: `SELECT * FROM users WHERE name = 'bob'`},
	{name: "equality without spaces", in: `SELECT * FROM users WHERE name="bob" AND age > 3`, want: `SELECT * FROM users WHERE name='bob' AND age > 3`},
	{name: "not equal literal", in: `SELECT * FROM users WHERE name != "bob"`, want: `SELECT * FROM users WHERE name != 'bob'`},
	{name: "embedded single quote", in: `SELECT * FROM users WHERE name = "O'Brien"`, want: `SELECT * FROM users WHERE name = 'O''Brien'`},
	{name: "in list", in: `SELECT * FROM orders WHERE status IN ("paid", "shipped")`, want: `SELECT * FROM orders WHERE status IN ('paid', 'shipped')`},
	{name: "lower case in list", in: `select * from orders where status in ("paid")`, want: `select * from orders where status in ('paid')`},
	{name: "mixed literals in list", in: `SELECT * FROM t WHERE a IN ('a"b', "c", 3)`, want: `SELECT * FROM t WHERE a IN ('a"b', 'c', 3)`},
	{name: "escaped quote in list", in: `SELECT * FROM t WHERE a IN ('it''s', "x")`, want: `SELECT * FROM t WHERE a IN ('it''s', 'x')`},
	{name: "subquery identifiers untouched", in: `SELECT * FROM t WHERE a = "x" AND b IN (SELECT "id" FROM u)`, want: `SELECT * FROM t WHERE a = 'x' AND b IN (SELECT "id" FROM u)`},
	{name: "identifier list untouched", in: `SELECT * FROM t WHERE b IN ("id", other_col)`, want: `SELECT * FROM t WHERE b IN ("id", other_col)`},
	{name: "quoted identifier untouched", in: `SELECT "name" FROM "users"`, want: `SELECT "name" FROM "users"`},
	{name: "qualified identifier untouched", in: `SELECT * FROM a JOIN b ON a.id = "b".a_id`, want: `SELECT * FROM a JOIN b ON a.id = "b".a_id`},
	{name: "no pattern", in: "not sql at all", want: "not sql at all"},
	{name: "empty", in: "", want: ""},
	{name: "only fence", in: "```", want: ""},
	{name: "unbalanced quote", in: `SELECT * FROM users WHERE name = "bob`, want: `SELECT * FROM users WHERE name = "bob`},
}

func TestSanitize(t *testing.T) {
	for _, tc := range sanitizeCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Sanitize(tc.in))
		})
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	extra := []string{
		`SELECT * FROM t WHERE a="x"="y"`,
		"```sql\nSELECT * FROM t WHERE a = \"x\" AND b IN (\"y\")\n```",
		`SELECT "a" = "b" FROM t`,
	}
	inputs := make([]string, 0, len(sanitizeCases)+len(extra))
	for _, tc := range sanitizeCases {
		inputs = append(inputs, tc.in)
	}
	inputs = append(inputs, extra...)

	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
	}
}
