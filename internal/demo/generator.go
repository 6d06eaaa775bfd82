// Package demo generates a small, deterministic shop database to try the
// assistant against.
package demo

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

type Customer struct {
	ID         int64
	Name       string
	Country    string
	SignedUpAt time.Time
}

type Order struct {
	ID         int64
	CustomerID int64
	Status     string
	Amount     float64
	Currency   string
	Device     string
	OrderedAt  time.Time
}

// Generator yields the same customers and orders for the same seed.
type Generator struct {
	rnd       *rand.Rand
	customers int
	orderSeq  int64
	now       func() time.Time
}

func NewGenerator(seed int64, customers int) *Generator {
	if customers <= 0 {
		customers = 1
	}
	return &Generator{
		rnd:       rand.New(rand.NewSource(seed)),
		customers: customers,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (g *Generator) Customers() []Customer {
	base := g.now().Truncate(24 * time.Hour)
	out := make([]Customer, 0, g.customers)
	for i := 1; i <= g.customers; i++ {
		out = append(out, Customer{
			ID:         int64(i),
			Name:       fmt.Sprintf("%s %s", pickOne(g.rnd, firstNames), pickOne(g.rnd, lastNames)),
			Country:    pickOne(g.rnd, []string{"US", "DE", "GB", "IN", "JP", "BR"}),
			SignedUpAt: base.Add(-time.Duration(g.rnd.Intn(365*24)) * time.Hour),
		})
	}
	return out
}

func (g *Generator) NextOrder() Order {
	g.orderSeq++
	status := g.pickStatus()
	return Order{
		ID:         g.orderSeq,
		CustomerID: int64(g.rnd.Intn(g.customers) + 1),
		Status:     status,
		Amount:     g.pickAmount(status),
		Currency:   "USD",
		Device:     pickOne(g.rnd, []string{"desktop", "mobile", "tablet"}),
		OrderedAt:  g.now().Add(-time.Duration(g.rnd.Intn(90*24*60)) * time.Minute).Truncate(time.Second),
	}
}

var (
	firstNames = []string{"Ada", "Grace", "Alan", "Edsger", "Barbara", "Ken", "Margaret", "Linus"}
	lastNames  = []string{"Lovelace", "Hopper", "Turing", "Dijkstra", "Liskov", "Thompson", "Hamilton", "Torvalds"}
)

func (g *Generator) pickStatus() string {
	p := g.rnd.Intn(100)
	switch {
	case p < 60:
		return "delivered"
	case p < 80:
		return "shipped"
	case p < 92:
		return "pending"
	default:
		return "cancelled"
	}
}

func (g *Generator) pickAmount(status string) float64 {
	switch status {
	case "cancelled":
		return round2(5 + g.rnd.Float64()*60)
	default:
		return round2(15 + g.rnd.Float64()*285)
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
