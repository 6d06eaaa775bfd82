package demo

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/askmesh/askmesh/internal/database"
	"github.com/askmesh/askmesh/internal/observability"
)

type SeedOptions struct {
	Seed      int64
	Customers int
	Orders    int
}

type SeedReport struct {
	Customers int
	Orders    int
}

var ddl = []string{
	`CREATE TABLE customers (
	id INTEGER PRIMARY KEY,
	name VARCHAR(80) NOT NULL,
	country VARCHAR(2) NOT NULL,
	signed_up_at TIMESTAMP NOT NULL
)`,
	`CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	customer_id INTEGER NOT NULL REFERENCES customers(id),
	status VARCHAR(16) NOT NULL,
	amount DOUBLE PRECISION NOT NULL,
	currency VARCHAR(3) NOT NULL,
	device VARCHAR(16) NOT NULL,
	ordered_at TIMESTAMP NOT NULL
)`,
}

// Seed creates the customers and orders tables and fills them in one
// transaction. The tables must not exist yet.
func Seed(ctx context.Context, db *sql.DB, driver string, opts SeedOptions, logger *slog.Logger) (SeedReport, error) {
	logger = observability.OrDiscard(logger)
	driver, err := database.NormalizeDriver(driver)
	if err != nil {
		return SeedReport{}, err
	}
	if opts.Customers <= 0 {
		opts.Customers = 25
	}
	if opts.Orders < 0 {
		return SeedReport{}, fmt.Errorf("orders must not be negative")
	}

	started := time.Now()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return SeedReport{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return SeedReport{}, fmt.Errorf("create demo table: %w", err)
		}
	}

	gen := NewGenerator(opts.Seed, opts.Customers)
	customerSQL := insertSQL(driver, "customers", "id", "name", "country", "signed_up_at")
	for _, c := range gen.Customers() {
		if _, err := tx.ExecContext(ctx, customerSQL, c.ID, c.Name, c.Country, c.SignedUpAt); err != nil {
			return SeedReport{}, fmt.Errorf("insert customer %d: %w", c.ID, err)
		}
	}
	orderSQL := insertSQL(driver, "orders", "id", "customer_id", "status", "amount", "currency", "device", "ordered_at")
	for i := 0; i < opts.Orders; i++ {
		o := gen.NextOrder()
		if _, err := tx.ExecContext(ctx, orderSQL, o.ID, o.CustomerID, o.Status, o.Amount, o.Currency, o.Device, o.OrderedAt); err != nil {
			return SeedReport{}, fmt.Errorf("insert order %d: %w", o.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return SeedReport{}, fmt.Errorf("commit demo data: %w", err)
	}

	report := SeedReport{Customers: opts.Customers, Orders: opts.Orders}
	logger.Info("demo database seeded",
		slog.String("driver", driver),
		slog.Int("customers", report.Customers),
		slog.Int("orders", report.Orders),
		slog.Duration("took", time.Since(started)),
	)
	return report, nil
}

func insertSQL(driver, table string, columns ...string) string {
	marks := make([]string, len(columns))
	for i := range columns {
		if driver == database.DriverPostgres {
			marks[i] = fmt.Sprintf("$%d", i+1)
		} else {
			marks[i] = "?"
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(marks, ", "))
}
