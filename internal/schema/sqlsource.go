package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/askmesh/askmesh/internal/database"
)

// SQLSource introspects a live database. Postgres and DuckDB are described
// from information_schema, MySQL through SHOW CREATE TABLE and SQLite from
// sqlite_master.
type SQLSource struct {
	db     *sql.DB
	driver string
	schema string
}

func NewSQLSource(db *sql.DB, driver string) (*SQLSource, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	normalized, err := database.NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}
	src := &SQLSource{db: db, driver: normalized}
	switch normalized {
	case database.DriverPostgres:
		src.schema = "public"
	case database.DriverDuckDB:
		src.schema = "main"
	}
	return src, nil
}

// WithSchema selects the information_schema schema for Postgres and DuckDB.
func (s *SQLSource) WithSchema(name string) *SQLSource {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		s.schema = trimmed
	}
	return s
}

func (s *SQLSource) ListTables(ctx context.Context) ([]string, error) {
	var (
		query string
		args  []any
	)
	switch s.driver {
	case database.DriverMySQL:
		query = `SHOW TABLES`
	case database.DriverSQLite:
		query = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	default:
		query = `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name`
		args = []any{s.schema}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

func (s *SQLSource) TableInfo(ctx context.Context, table string) (string, error) {
	switch s.driver {
	case database.DriverMySQL:
		var name, ddl string
		if err := s.db.QueryRowContext(ctx, "SHOW CREATE TABLE "+quoteMySQL(table)).Scan(&name, &ddl); err != nil {
			return "", fmt.Errorf("show create table %s: %w", table, err)
		}
		return ddl, nil
	case database.DriverSQLite:
		var ddl sql.NullString
		err := s.db.QueryRowContext(ctx, `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&ddl)
		if err != nil {
			return "", fmt.Errorf("read sqlite_master for %s: %w", table, err)
		}
		return ddl.String, nil
	default:
		return s.describeColumns(ctx, table)
	}
}

func (s *SQLSource) describeColumns(ctx context.Context, table string) (string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, s.schema, table)
	if err != nil {
		return "", fmt.Errorf("query columns for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var columns []string
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return "", fmt.Errorf("scan column for %s: %w", table, err)
		}
		column := "\t" + name + " " + strings.ToUpper(dataType)
		if strings.EqualFold(nullable, "NO") {
			column += " NOT NULL"
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate columns for %s: %w", table, err)
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("table %s has no columns", table)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", table, strings.Join(columns, ",\n")), nil
}

func quoteMySQL(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
