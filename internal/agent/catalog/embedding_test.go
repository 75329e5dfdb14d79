package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocerybabu/voice-core/internal/agent/model"
)

// conceptEmbedder places texts on three axes: staples, snacks and sauces.
type conceptEmbedder struct {
	mu          sync.Mutex
	calls       int
	failBatch   bool
	failQueries bool
}

func (e *conceptEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if (len(texts) > 1 && e.failBatch) || (len(texts) == 1 && e.failQueries) {
		return nil, errors.New("embedding backend down")
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		t = strings.ToLower(t)
		v := []float64{0, 0, 0, 0.01}
		if strings.Contains(t, "rice") || strings.Contains(t, "peas") || strings.Contains(t, "grocery") {
			v[0] = 1
		}
		if strings.Contains(t, "biscuit") || strings.Contains(t, "snack") {
			v[1] = 1
		}
		if strings.Contains(t, "ketchup") || strings.Contains(t, "sauce") {
			v[2] = 1
		}
		out[i] = v
	}
	return out, nil
}

func (e *conceptEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func TestEmbeddingMatcher_SemanticMatchAndCache(t *testing.T) {
	emb := &conceptEmbedder{}
	m, err := NewEmbeddingMatcher(emb, 8)
	require.NoError(t, err)
	x, _ := loadedIndex(groceryItems(), m)
	require.Equal(t, 1, emb.callCount())

	ctx := context.Background()
	best, ok := x.FindBestMatch(ctx, "sauce")
	require.True(t, ok)
	assert.Equal(t, "Tomato Ketchup", best.Item.Name)
	assert.Equal(t, 2, emb.callCount())

	_, ok = x.FindBestMatch(ctx, "Sauce!")
	require.True(t, ok)
	assert.Equal(t, 2, emb.callCount(), "normalized query hits the cache")

	_, lexicalOK := mustLexical(t).FindBestMatch(ctx, "sauce")
	assert.False(t, lexicalOK, "the lexical matcher has no notion of sauce")
}

func TestEmbeddingMatcher_BuildFailureFallsBackToLexical(t *testing.T) {
	m, err := NewEmbeddingMatcher(&conceptEmbedder{failBatch: true}, 8)
	require.NoError(t, err)
	x, _ := loadedIndex(groceryItems(), m)

	best, ok := x.FindBestMatch(context.Background(), "milk bikis")
	require.True(t, ok)
	assert.Equal(t, "Milk Bikis Minis Wafflez 7 oz", best.Item.Name)
}

func TestEmbeddingMatcher_QueryFailureFallsBackToLexical(t *testing.T) {
	m, err := NewEmbeddingMatcher(&conceptEmbedder{failQueries: true}, 8)
	require.NoError(t, err)
	x, _ := loadedIndex(groceryItems(), m)

	best, ok := x.FindBestMatch(context.Background(), "ketchup")
	require.True(t, ok)
	assert.Equal(t, "Tomato Ketchup", best.Item.Name)
}

func TestEmbeddingMatcher_RelatedUsesVectors(t *testing.T) {
	m, err := NewEmbeddingMatcher(&conceptEmbedder{}, 0)
	require.NoError(t, err)
	x, _ := loadedIndex(groceryItems(), m)

	sim := x.SimilarTo(context.Background(), "Basmati Rice 5kg", 1)
	require.Len(t, sim, 1)
	assert.Equal(t, "Chora Black Eyed Peas 4 lb", sim[0].Item.Name)
}

func TestNewEmbeddingMatcher_NilEmbedder(t *testing.T) {
	_, err := NewEmbeddingMatcher(nil, 4)
	assert.Error(t, err)
}

func mustLexical(t *testing.T) *Index {
	t.Helper()
	x, _ := loadedIndex(groceryItems(), NewLexicalMatcher())
	return x
}

// batchEmbedder rejects oversized batches the way the Gemini endpoint does.
type batchEmbedder struct {
	mu    sync.Mutex
	sizes []int
}

func (e *batchEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sizes = append(e.sizes, len(texts))
	if len(texts) > maxEmbedBatch {
		return nil, fmt.Errorf("at most %d requests can be in one batch", maxEmbedBatch)
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, float64(i)}
	}
	return out, nil
}

func TestEmbeddingMatcher_BuildBatchesLargeCatalogs(t *testing.T) {
	emb := &batchEmbedder{}
	m, err := NewEmbeddingMatcher(emb, 8)
	require.NoError(t, err)

	items := make([]model.CatalogItem, 2*maxEmbedBatch+50)
	for i := range items {
		items[i] = item(fmt.Sprintf("Item %d", i), "Grocery", 1, "1.00", "")
	}
	s, err := m.Build(context.Background(), items)
	require.NoError(t, err)

	scorer, ok := s.(*embeddingScorer)
	require.True(t, ok, "expected the embedding scorer, got %T", s)
	assert.Len(t, scorer.docs, len(items))
	assert.Equal(t, []int{maxEmbedBatch, maxEmbedBatch, 50}, emb.sizes)
}
