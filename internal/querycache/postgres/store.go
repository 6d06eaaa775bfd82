package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/askmesh/askmesh/internal/observability"
	"github.com/askmesh/askmesh/internal/querycache"
)

// Store keeps cache entries in the query_cache table created by the embedded
// migrations. Each Store is a single upsert rather than a full rewrite.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Lookup(ctx context.Context, question string) (string, error) {
	var sqlText string
	err := s.db.QueryRowContext(ctx, `
SELECT sql_text
FROM query_cache
WHERE question = $1`, question).Scan(&sqlText)
	if errors.Is(err, sql.ErrNoRows) {
		return "", querycache.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup cached question: %w", err)
	}
	return sqlText, nil
}

func (s *Store) Store(ctx context.Context, question, sqlText string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO query_cache (question, sql_text)
VALUES ($1, $2)
ON CONFLICT (question)
DO UPDATE SET sql_text = EXCLUDED.sql_text, updated_at = NOW()`, question, sqlText)
	if err != nil {
		return fmt.Errorf("store cached question: %w", err)
	}
	if count, err := s.Count(ctx); err == nil {
		observability.SetCacheEntries(count)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_cache`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count cached questions: %w", err)
	}
	return count, nil
}
