package demo

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/askmesh/askmesh/internal/database"
)

func TestGeneratorDeterministicForSeed(t *testing.T) {
	fixedNow := time.Date(2026, 2, 19, 7, 30, 0, 0, time.UTC)

	g1 := NewGenerator(42, 10)
	g2 := NewGenerator(42, 10)
	g1.now = func() time.Time { return fixedNow }
	g2.now = func() time.Time { return fixedNow }

	if !reflect.DeepEqual(g1.Customers(), g2.Customers()) {
		t.Fatal("customers differ for the same seed")
	}
	for i := 0; i < 5; i++ {
		o1 := g1.NextOrder()
		o2 := g2.NextOrder()
		if !reflect.DeepEqual(o1, o2) {
			t.Fatalf("order %d differs: %#v vs %#v", i, o1, o2)
		}
	}
}

func TestGeneratorOrdersReferenceCustomers(t *testing.T) {
	g := NewGenerator(7, 3)
	for i := 1; i <= 50; i++ {
		order := g.NextOrder()
		if order.ID != int64(i) {
			t.Fatalf("order id = %d, want %d", order.ID, i)
		}
		if order.CustomerID < 1 || order.CustomerID > 3 {
			t.Fatalf("customer id = %d out of range", order.CustomerID)
		}
		if order.Amount <= 0 {
			t.Fatalf("amount = %v", order.Amount)
		}
	}
}

func TestInsertSQLPlaceholders(t *testing.T) {
	if got := insertSQL(database.DriverPostgres, "t", "a", "b"); got != "INSERT INTO t (a, b) VALUES ($1, $2)" {
		t.Fatalf("postgres insert = %q", got)
	}
	if got := insertSQL(database.DriverSQLite, "t", "a", "b"); got != "INSERT INTO t (a, b) VALUES (?, ?)" {
		t.Fatalf("sqlite insert = %q", got)
	}
}

func TestSeedSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "demo.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	report, err := Seed(ctx, db, "sqlite", SeedOptions{Seed: 1, Customers: 4, Orders: 12}, nil)
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if report.Customers != 4 || report.Orders != 12 {
		t.Fatalf("report = %+v", report)
	}

	var orders int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders o JOIN customers c ON c.id = o.customer_id`).Scan(&orders); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orders != 12 {
		t.Fatalf("joined orders = %d, want 12", orders)
	}

	if _, err := Seed(ctx, db, "sqlite", SeedOptions{Seed: 1}, nil); err == nil {
		t.Fatal("expected error when demo tables already exist")
	}
}

func TestSeedRejectsNegativeOrders(t *testing.T) {
	if _, err := Seed(context.Background(), nil, "sqlite", SeedOptions{Orders: -1}, nil); err == nil {
		t.Fatal("expected error")
	}
}
