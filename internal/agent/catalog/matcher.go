package catalog

import (
	"context"

	"github.com/grocerybabu/voice-core/internal/agent/model"
)

// Matcher builds a Scorer over a catalog snapshot. Build is called once per
// reload; the returned Scorer is immutable and shared by concurrent readers.
type Matcher interface {
	Name() string
	Build(ctx context.Context, items []model.CatalogItem) (Scorer, error)
}

// Scorer answers similarity questions about the items it was built over,
// addressed by their position in the snapshot.
type Scorer interface {
	// Score returns the similarity of query to every item, in 0..1.
	Score(ctx context.Context, query string) []float64
	// Related returns the similarity of item i to every item, in 0..1.
	Related(i int) []float64
}
