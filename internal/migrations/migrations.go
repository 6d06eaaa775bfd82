// Package migrations owns the schema of the postgres query cache.
package migrations

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const ledgerTable = "askmesh_schema_migrations"

// Files are named <version>_<name>.<up|down>.sql.
var fileName = regexp.MustCompile(`^([0-9]+)_([a-z0-9_]+)\.(up|down)\.sql$`)

type Migration struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

// Status is one migration and whether the ledger records it as applied.
type Status struct {
	Version int64
	Name    string
	Applied bool
}

type Runner struct {
	fsys fs.FS
}

func NewRunner() *Runner {
	return &Runner{fsys: embeddedFS}
}

// Up applies pending migrations in version order, at most steps of them when
// steps is positive.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	all, applied, err := r.plan(ctx, db, "ASC")
	if err != nil {
		return 0, err
	}
	done := map[int64]bool{}
	for _, version := range applied {
		done[version] = true
	}

	count := 0
	for _, m := range all {
		if done[m.Version] {
			continue
		}
		if steps > 0 && count == steps {
			break
		}
		err := inTx(ctx, db, m.Up,
			`INSERT INTO `+ledgerTable+` (version, name) VALUES ($1, $2)`, m.Version, m.Name)
		if err != nil {
			return count, fmt.Errorf("apply migration %d_%s: %w", m.Version, m.Name, err)
		}
		count++
	}
	return count, nil
}

// Down rolls back the newest applied migrations; steps below one means one.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	steps = max(steps, 1)
	all, applied, err := r.plan(ctx, db, "DESC")
	if err != nil {
		return 0, err
	}
	byVersion := make(map[int64]Migration, len(all))
	for _, m := range all {
		byVersion[m.Version] = m
	}

	count := 0
	for _, version := range applied[:min(steps, len(applied))] {
		m, ok := byVersion[version]
		if !ok {
			return count, fmt.Errorf("applied migration %d is missing from source", version)
		}
		err := inTx(ctx, db, m.Down,
			`DELETE FROM `+ledgerTable+` WHERE version = $1`, m.Version)
		if err != nil {
			return count, fmt.Errorf("roll back migration %d_%s: %w", m.Version, m.Name, err)
		}
		count++
	}
	return count, nil
}

func (r *Runner) Status(ctx context.Context, db *sql.DB) ([]Status, error) {
	all, applied, err := r.plan(ctx, db, "ASC")
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(all))
	for _, m := range all {
		out = append(out, Status{Version: m.Version, Name: m.Name, Applied: slices.Contains(applied, m.Version)})
	}
	return out, nil
}

// plan loads the migration files and the applied versions in the given order.
func (r *Runner) plan(ctx context.Context, db *sql.DB, order string) ([]Migration, []int64, error) {
	all, err := load(r.fsys)
	if err != nil {
		return nil, nil, err
	}
	ddl := `
CREATE TABLE IF NOT EXISTS ` + ledgerTable + ` (
	version BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, nil, fmt.Errorf("create migration ledger: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT version FROM `+ledgerTable+` ORDER BY version `+order)
	if err != nil {
		return nil, nil, fmt.Errorf("read migration ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var applied []int64
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied = append(applied, version)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read migration ledger: %w", err)
	}
	return all, applied, nil
}

func inTx(ctx context.Context, db *sql.DB, script, ledgerSQL string, args ...any) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, ledgerSQL, args...); err != nil {
		return fmt.Errorf("update migration ledger: %w", err)
	}
	return tx.Commit()
}

func load(fsys fs.FS) ([]Migration, error) {
	files, err := fs.Glob(fsys, "sql/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	byVersion := map[int64]*Migration{}
	for _, file := range files {
		parts := fileName.FindStringSubmatch(path.Base(file))
		if parts == nil {
			continue
		}
		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %s: bad version: %w", file, err)
		}
		body, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", file, err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: parts[2]}
			byVersion[version] = m
		} else if m.Name != parts[2] {
			return nil, fmt.Errorf("migration %d has two names: %s and %s", version, m.Name, parts[2])
		}
		if parts[3] == "up" {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		switch {
		case strings.TrimSpace(m.Up) == "":
			return nil, fmt.Errorf("migration %d missing up SQL", m.Version)
		case strings.TrimSpace(m.Down) == "":
			return nil, fmt.Errorf("migration %d missing down SQL", m.Version)
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}
