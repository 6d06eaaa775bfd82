package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/askmesh/askmesh/internal/observability"
)

// Document is the schema text of one table, used both as retrieval corpus and
// as model context.
type Document struct {
	TableName string `json:"table_name"`
	Content   string `json:"content"`
}

// Source describes the tables of a database.
type Source interface {
	ListTables(ctx context.Context) ([]string, error)
	TableInfo(ctx context.Context, table string) (string, error)
}

// LoadDocuments reads every table of src. Tables whose description fails are
// skipped with a warning; only a failure to list tables is returned.
func LoadDocuments(ctx context.Context, src Source, logger *slog.Logger) ([]Document, error) {
	logger = observability.OrDiscard(logger)

	tables, err := src.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	docs := make([]Document, 0, len(tables))
	seen := make(map[string]struct{}, len(tables))
	for _, table := range tables {
		if _, dup := seen[table]; dup {
			continue
		}
		seen[table] = struct{}{}

		info, err := src.TableInfo(ctx, table)
		if err != nil {
			logger.Warn("schema table skipped", slog.String("table", table), slog.Any("error", err))
			continue
		}
		info = strings.TrimSpace(info)
		if info == "" {
			logger.Warn("schema table skipped", slog.String("table", table), slog.String("error", "empty table description"))
			continue
		}
		docs = append(docs, Document{TableName: table, Content: info})
	}

	logger.Info("schema loaded", slog.Int("tables", len(docs)))
	return docs, nil
}

type filtered struct {
	next  Source
	names []string
}

// Only restricts src to the named tables, in the given order. An empty list
// returns src unchanged.
func Only(src Source, names []string) Source {
	cleaned := make([]string, 0, len(names))
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return src
	}
	return filtered{next: src, names: cleaned}
}

func (f filtered) ListTables(ctx context.Context) ([]string, error) {
	available, err := f.next.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(available))
	for _, table := range available {
		known[table] = struct{}{}
	}

	out := make([]string, 0, len(f.names))
	for _, name := range f.names {
		if _, ok := known[name]; ok {
			out = append(out, name)
		}
	}
	return out, nil
}

func (f filtered) TableInfo(ctx context.Context, table string) (string, error) {
	return f.next.TableInfo(ctx, table)
}
