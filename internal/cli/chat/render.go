package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/askmesh/askmesh/internal/assistant"
	"github.com/askmesh/askmesh/internal/query"
	"github.com/askmesh/askmesh/internal/resolver"
)

const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
)

// ValidFormat reports whether format is understood by RenderRows.
func ValidFormat(format string) bool {
	switch format {
	case FormatTable, FormatJSON, FormatCSV, FormatMarkdown, "markdown":
		return true
	default:
		return false
	}
}

// RenderAnswer prints the SQL, its provenance and the rows of one turn.
func RenderAnswer(w io.Writer, answer assistant.Answer, format string) {
	if answer.Ended {
		_, _ = fmt.Fprintln(w, answer.Message())
		return
	}
	if answer.Result.SQL != nil {
		_, _ = fmt.Fprintf(w, "Generated SQL:\n%s\n", *answer.Result.SQL)
	}
	tables := "none"
	if len(answer.Result.TablesUsed) > 0 {
		tables = strings.Join(answer.Result.TablesUsed, ", ")
	}
	_, _ = fmt.Fprintf(w, "Tables used: %s\n", tables)
	_, _ = fmt.Fprintf(w, "Source: %s\n", answer.Result.Source.Label())

	if message := answer.Message(); message != "" {
		_, _ = fmt.Fprintln(w, message)
		return
	}
	RenderRows(w, answer.Outcome.Columns, answer.Outcome.Rows, format)
}

// RenderOutcome prints rows of a directly executed statement.
func RenderOutcome(w io.Writer, outcome query.Outcome, format string) {
	switch {
	case outcome.Denied:
		_, _ = fmt.Fprintf(w, "Blocked: %s\n", outcome.Reason)
	case outcome.Err != nil:
		_, _ = fmt.Fprintf(w, "No results returned (%v)\n", outcome.Err)
	case len(outcome.Rows) == 0:
		_, _ = fmt.Fprintln(w, "No results returned")
	default:
		RenderRows(w, outcome.Columns, outcome.Rows, format)
	}
}

func RenderRows(w io.Writer, columns []string, rows []query.Row, format string) {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rows)
	case FormatCSV:
		renderCSV(w, columns, rows)
	case FormatMarkdown, "markdown":
		renderMarkdown(w, columns, rows)
	default:
		renderTable(w, columns, rows)
	}
}

func renderTable(w io.Writer, columns []string, rows []query.Row) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(columns))
	for i, column := range columns {
		header[i] = column
	}
	t.AppendHeader(header)
	for _, row := range rows {
		t.AppendRow(cells(row))
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
}

func renderCSV(w io.Writer, columns []string, rows []query.Row) {
	_, _ = fmt.Fprintln(w, strings.Join(columns, ","))
	for _, row := range rows {
		values := make([]string, 0, row.Len())
		for _, value := range row.Values() {
			values = append(values, escapeCSV(formatValue(value)))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
}

func renderMarkdown(w io.Writer, columns []string, rows []query.Row) {
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(columns, " | "))
	seps := make([]string, len(columns))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))
	for _, row := range rows {
		values := make([]string, 0, row.Len())
		for _, value := range row.Values() {
			values = append(values, formatValue(value))
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
}

// RenderHistory prints one line group per turn, oldest first.
func RenderHistory(w io.Writer, turns []resolver.Turn) {
	if len(turns) == 0 {
		_, _ = fmt.Fprintln(w, "No questions asked yet.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Question", "SQL", "Tables", "Source"})
	for i, turn := range turns {
		sqlText := turn.SQLText()
		if sqlText == "" {
			sqlText = "-"
		}
		t.AppendRow(table.Row{i + 1, turn.Question, sqlText, strings.Join(turn.TablesUsed, ", "), turn.Source.Label()})
	}
	t.Render()
}

func cells(row query.Row) table.Row {
	out := make(table.Row, 0, row.Len())
	for _, value := range row.Values() {
		out = append(out, formatValue(value))
	}
	return out
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
