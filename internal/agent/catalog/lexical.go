package catalog

import (
	"context"
	"math"

	"github.com/grocerybabu/voice-core/internal/agent/model"
)

// descriptionWeight discounts matches found outside the product name.
const descriptionWeight = 0.8

// LexicalMatcher scores queries by token coverage with prefix and edit
// distance tolerance, and relates items by TF-IDF cosine.
type LexicalMatcher struct{}

func NewLexicalMatcher() *LexicalMatcher { return &LexicalMatcher{} }

func (LexicalMatcher) Name() string { return "lexical" }

func (LexicalMatcher) Build(_ context.Context, items []model.CatalogItem) (Scorer, error) {
	return buildLexical(items), nil
}

type lexicalDoc struct {
	name  []string
	extra []string
}

type lexicalScorer struct {
	docs    []lexicalDoc
	vectors []map[string]float64
}

func buildLexical(items []model.CatalogItem) *lexicalScorer {
	s := &lexicalScorer{
		docs:    make([]lexicalDoc, len(items)),
		vectors: make([]map[string]float64, len(items)),
	}
	df := make(map[string]int)
	counts := make([]map[string]int, len(items))
	for i, it := range items {
		name := uniq(terms(it.Name))
		s.docs[i] = lexicalDoc{name: name, extra: uniq(terms(it.CompositeText()))}

		tf := make(map[string]int)
		for _, t := range terms(it.CompositeText()) {
			tf[t]++
		}
		for t := range tf {
			df[t]++
		}
		counts[i] = tf
	}

	n := float64(len(items))
	for i, tf := range counts {
		vec := make(map[string]float64, len(tf))
		var norm float64
		for t, c := range tf {
			w := float64(c) * (math.Log((1+n)/(1+float64(df[t]))) + 1)
			vec[t] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for t := range vec {
				vec[t] /= norm
			}
		}
		s.vectors[i] = vec
	}
	return s
}

func (s *lexicalScorer) Score(_ context.Context, query string) []float64 {
	q := uniq(terms(query))
	out := make([]float64, len(s.docs))
	if len(q) == 0 {
		return out
	}
	for i, d := range s.docs {
		out[i] = scoreDoc(q, d)
	}
	return out
}

// scoreDoc is query coverage scaled by how much of the product name the
// query accounts for, so "milk bikis" prefers the item named Milk Bikis over
// one that only mentions milk.
func scoreDoc(q []string, d lexicalDoc) float64 {
	var covered float64
	nameHit := make([]bool, len(d.name))
	for _, qt := range q {
		best := 0.0
		for j, nt := range d.name {
			if s := tokenSimilarity(qt, nt); s > 0 {
				nameHit[j] = true
				best = max(best, s)
			}
		}
		for _, et := range d.extra {
			best = max(best, descriptionWeight*tokenSimilarity(qt, et))
		}
		covered += best
	}
	coverage := covered / float64(len(q))
	if coverage == 0 {
		return 0
	}

	nameCoverage := 0.0
	if len(d.name) > 0 {
		hits := 0
		for _, h := range nameHit {
			if h {
				hits++
			}
		}
		nameCoverage = float64(hits) / float64(len(d.name))
	}
	return coverage * (0.5 + 0.5*nameCoverage)
}

func (s *lexicalScorer) Related(i int) []float64 {
	out := make([]float64, len(s.vectors))
	if i < 0 || i >= len(s.vectors) {
		return out
	}
	a := s.vectors[i]
	for j, b := range s.vectors {
		var dot float64
		for t, w := range a {
			dot += w * b[t]
		}
		out[j] = dot
	}
	return out
}

func uniq(ts []string) []string {
	seen := make(map[string]struct{}, len(ts))
	out := ts[:0:0]
	for _, t := range ts {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
