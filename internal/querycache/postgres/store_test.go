package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/askmesh/askmesh/internal/querycache"
)

func TestLookupReturnsCachedSQL(t *testing.T) {
	db, mock := newSQLMock(t)
	store := NewStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT sql_text
FROM query_cache
WHERE question = $1`)).
		WithArgs("show me all users").
		WillReturnRows(sqlmock.NewRows([]string{"sql_text"}).AddRow("SELECT * FROM users"))

	got, err := store.Lookup(context.Background(), "show me all users")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got != "SELECT * FROM users" {
		t.Fatalf("Lookup() = %q", got)
	}
	assertSQLMock(t, mock)
}

func TestLookupMapsNoRowsToErrNotFound(t *testing.T) {
	db, mock := newSQLMock(t)
	store := NewStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM query_cache`)).
		WithArgs("Show me all users").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.Lookup(context.Background(), "Show me all users"); !errors.Is(err, querycache.ErrNotFound) {
		t.Fatalf("Lookup() error = %v, want ErrNotFound", err)
	}
	assertSQLMock(t, mock)
}

func TestLookupWrapsDatabaseErrors(t *testing.T) {
	db, mock := newSQLMock(t)
	store := NewStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM query_cache`)).
		WillReturnError(errors.New("connection reset"))

	_, err := store.Lookup(context.Background(), "q")
	if err == nil || errors.Is(err, querycache.ErrNotFound) {
		t.Fatalf("Lookup() error = %v, want wrapped database error", err)
	}
	assertSQLMock(t, mock)
}

func TestStoreUpsertsEntry(t *testing.T) {
	db, mock := newSQLMock(t)
	store := NewStore(db)

	mock.ExpectExec(regexp.QuoteMeta(`
INSERT INTO query_cache (question, sql_text)
VALUES ($1, $2)
ON CONFLICT (question)
DO UPDATE SET sql_text = EXCLUDED.sql_text, updated_at = NOW()`)).
		WithArgs("show me all users", "SELECT * FROM users").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM query_cache`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	if err := store.Store(context.Background(), "show me all users", "SELECT * FROM users"); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestStoreReturnsExecError(t *testing.T) {
	db, mock := newSQLMock(t)
	store := NewStore(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO query_cache`)).
		WillReturnError(errors.New("read-only transaction"))

	if err := store.Store(context.Background(), "q", "SELECT 1"); err == nil {
		t.Fatal("expected error")
	}
	assertSQLMock(t, mock)
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
