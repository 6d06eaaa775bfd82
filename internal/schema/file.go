package schema

import (
	"context"
	"fmt"
	"os"
)

// StaticSource serves a fixed set of documents.
type StaticSource struct {
	docs   []Document
	byName map[string]string
}

func NewStaticSource(docs []Document) *StaticSource {
	byName := make(map[string]string, len(docs))
	for _, doc := range docs {
		byName[doc.TableName] = doc.Content
	}
	return &StaticSource{docs: docs, byName: byName}
}

// NewFileSource reads a schema dump such as the output of mysqldump --no-data
// or pg_dump --schema-only.
func NewFileSource(path string) (*StaticSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file %s: %w", path, err)
	}
	docs := SplitDDL(string(raw))
	if len(docs) == 0 {
		return nil, fmt.Errorf("schema file %s contains no CREATE TABLE statements", path)
	}
	return NewStaticSource(docs), nil
}

func (s *StaticSource) ListTables(context.Context) ([]string, error) {
	names := make([]string, 0, len(s.docs))
	for _, doc := range s.docs {
		names = append(names, doc.TableName)
	}
	return names, nil
}

func (s *StaticSource) TableInfo(_ context.Context, table string) (string, error) {
	content, ok := s.byName[table]
	if !ok {
		return "", fmt.Errorf("table %q not found", table)
	}
	return content, nil
}
