package schemaindex

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askmesh/askmesh/internal/schema"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vector, ok := f.vectors[text]
	if !ok {
		return nil, errors.New("unknown text " + text)
	}
	return vector, nil
}

var docs = []schema.Document{
	{TableName: "users", Content: "CREATE TABLE users (id INT)"},
	{TableName: "orders", Content: "CREATE TABLE orders (id INT)"},
	{TableName: "products", Content: "CREATE TABLE products (id INT)"},
}

func newEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{
		"CREATE TABLE users (id INT)":    {0, 0},
		"CREATE TABLE orders (id INT)":   {1, 0},
		"CREATE TABLE products (id INT)": {3, 0},
		"show me all users":              {0, 0},
		"orders per user":                {0.5, 0},
	}}
}

func TestSearchKeepsTablesAboveThreshold(t *testing.T) {
	idx := Build(context.Background(), newEmbedder(), docs, nil)
	require.True(t, idx.Ready())
	require.Equal(t, 3, idx.Len())

	// distances: users 0 (1.0), orders 1 (0.5), products 9 (0.1)
	schemaText, tables := idx.Search(context.Background(), "show me all users", 0.5, 5)
	assert.Equal(t, []string{"users", "orders"}, tables)
	assert.Equal(t, "CREATE TABLE users (id INT)\n\nCREATE TABLE orders (id INT)", schemaText)
}

func TestSearchUsesInverseDistanceSimilarity(t *testing.T) {
	idx := Build(context.Background(), newEmbedder(), docs, nil)

	matches, err := idx.Rank(context.Background(), "orders per user", 5)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	// users and orders are both 0.25 away; document order breaks the tie.
	assert.Equal(t, "users", matches[0].Document.TableName)
	assert.Equal(t, "orders", matches[1].Document.TableName)
	assert.InDelta(t, 0.25, matches[0].Distance, 1e-9)
	assert.InDelta(t, 0.8, matches[0].Similarity, 1e-9)
	assert.InDelta(t, 6.25, matches[2].Distance, 1e-9)
	assert.InDelta(t, 1/7.25, matches[2].Similarity, 1e-9)
}

func TestSearchReturnsRankedPrefixAboveThreshold(t *testing.T) {
	idx := Build(context.Background(), newEmbedder(), docs, nil)
	ctx := context.Background()

	for _, threshold := range []float64{0, 0.1, 0.13, 0.5, 0.8, 0.81, 1, 1.5} {
		matches, err := idx.Rank(ctx, "orders per user", 5)
		require.NoError(t, err)

		var want []string
		for _, m := range matches {
			if m.Similarity < threshold {
				break
			}
			want = append(want, m.Document.TableName)
		}
		_, tables := idx.Search(ctx, "orders per user", threshold, 5)
		if want == nil {
			want = []string{}
		}
		assert.Equal(t, want, tables, "threshold %v", threshold)
	}
}

func TestSearchHonoursTopK(t *testing.T) {
	idx := Build(context.Background(), newEmbedder(), docs, nil)
	_, tables := idx.Search(context.Background(), "show me all users", 0, 1)
	assert.Equal(t, []string{"users"}, tables)

	_, tables = idx.Search(context.Background(), "show me all users", 0, 0)
	assert.Empty(t, tables)
}

func TestBuildDegradesWhenEmbeddingFails(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("provider unavailable")}
	idx := Build(context.Background(), embedder, docs, nil)
	assert.False(t, idx.Ready())

	calls := embedder.calls
	schemaText, tables := idx.Search(context.Background(), "show me all users", 0.6, 5)
	assert.Equal(t, "", schemaText)
	assert.NotNil(t, tables)
	assert.Empty(t, tables)
	assert.Equal(t, calls, embedder.calls, "degraded index must not embed questions")
}

func TestBuildDegradesWithoutEmbedder(t *testing.T) {
	idx := Build(context.Background(), nil, docs, nil)
	assert.False(t, idx.Ready())
	schemaText, tables := idx.Search(context.Background(), "anything", 0, 5)
	assert.Empty(t, schemaText)
	assert.Empty(t, tables)
}

func TestBuildDegradesOnDimensionMismatch(t *testing.T) {
	embedder := newEmbedder()
	embedder.vectors["CREATE TABLE products (id INT)"] = []float32{1, 2, 3}
	idx := Build(context.Background(), embedder, docs, nil)
	assert.False(t, idx.Ready())
}

func TestSearchDegradesWhenQuestionEmbeddingFails(t *testing.T) {
	idx := Build(context.Background(), newEmbedder(), docs, nil)
	schemaText, tables := idx.Search(context.Background(), "unknown question", 0, 5)
	assert.Empty(t, schemaText)
	assert.Empty(t, tables)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity(0))
	assert.Equal(t, 0.5, Similarity(1))
	assert.True(t, Similarity(math.Inf(1)) == 0)
}
