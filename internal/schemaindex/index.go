package schemaindex

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/askmesh/askmesh/internal/embedding"
	"github.com/askmesh/askmesh/internal/observability"
	"github.com/askmesh/askmesh/internal/schema"
)

// Match is one ranked schema document.
type Match struct {
	Document   schema.Document
	Distance   float64
	Similarity float64
}

type entry struct {
	doc    schema.Document
	vector []float32
}

// Index is an exact nearest-neighbour index over table schemas. An index that
// could not be built answers every search with no context.
type Index struct {
	embedder embedding.Embedder
	logger   *slog.Logger
	entries  []entry
	ready    bool
}

// Build embeds every document. Any embedding failure leaves the index
// unavailable rather than partially populated.
func Build(ctx context.Context, embedder embedding.Embedder, docs []schema.Document, logger *slog.Logger) *Index {
	idx := &Index{embedder: embedder, logger: observability.OrDiscard(logger)}
	if embedder == nil {
		idx.degrade(fmt.Errorf("no embedding provider configured"))
		return idx
	}

	entries := make([]entry, 0, len(docs))
	dimension := 0
	for _, doc := range docs {
		vector, err := embedder.Embed(ctx, doc.Content)
		if err != nil {
			idx.degrade(fmt.Errorf("embed table %s: %w", doc.TableName, err))
			return idx
		}
		if dimension == 0 {
			dimension = len(vector)
		}
		if len(vector) != dimension {
			idx.degrade(fmt.Errorf("embed table %s: dimension %d, want %d", doc.TableName, len(vector), dimension))
			return idx
		}
		entries = append(entries, entry{doc: doc, vector: vector})
	}

	idx.entries = entries
	idx.ready = true
	idx.logger.Info("schema index built", slog.Int("tables", len(entries)), slog.Int("dimension", dimension))
	return idx
}

func (idx *Index) degrade(err error) {
	idx.ready = false
	idx.entries = nil
	observability.IncrementRetrievalDegraded()
	idx.logger.Warn("schema index unavailable", slog.Any("error", err))
}

// Ready reports whether the index was built.
func (idx *Index) Ready() bool {
	return idx != nil && idx.ready
}

func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// Rank returns up to topK documents ordered by increasing distance to the
// question. Ties keep document order.
func (idx *Index) Rank(ctx context.Context, question string, topK int) ([]Match, error) {
	if !idx.Ready() {
		return nil, fmt.Errorf("schema index unavailable")
	}
	if topK <= 0 || len(idx.entries) == 0 {
		return nil, nil
	}

	query, err := idx.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	matches := make([]Match, 0, len(idx.entries))
	for _, e := range idx.entries {
		distance, err := squaredL2(query, e.vector)
		if err != nil {
			return nil, err
		}
		matches = append(matches, Match{
			Document:   e.doc,
			Distance:   distance,
			Similarity: Similarity(distance),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Search returns the schema text of the ranked tables whose similarity is at
// least threshold, joined by blank lines, together with their names. An
// unavailable index or a failed question embedding yields ("", []).
func (idx *Index) Search(ctx context.Context, question string, threshold float64, topK int) (string, []string) {
	tables := []string{}
	if !idx.Ready() {
		return "", tables
	}

	matches, err := idx.Rank(ctx, question, topK)
	if err != nil {
		observability.IncrementRetrievalDegraded()
		idx.logger.Warn("schema retrieval failed", slog.Any("error", err))
		return "", tables
	}

	contents := make([]string, 0, len(matches))
	for _, m := range matches {
		similarity := fmt.Sprintf("%.2f", m.Similarity)
		if m.Similarity >= threshold {
			contents = append(contents, m.Document.Content)
			tables = append(tables, m.Document.TableName)
			idx.logger.Debug("schema kept", slog.String("table", m.Document.TableName), slog.String("similarity", similarity))
			continue
		}
		idx.logger.Debug("schema skipped", slog.String("table", m.Document.TableName), slog.String("similarity", similarity))
	}

	observability.ObserveRetrieval(len(tables))
	return strings.Join(contents, "\n\n"), tables
}

// Similarity maps a distance to (0, 1]; zero distance is similarity 1.
func Similarity(distance float64) float64 {
	return 1 / (1 + distance)
}

func squaredL2(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum, nil
}
