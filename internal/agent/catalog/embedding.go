package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	lru "github.com/hashicorp/golang-lru"
	"google.golang.org/genai"

	"github.com/grocerybabu/voice-core/internal/agent/model"
	logx "github.com/grocerybabu/voice-core/pkg/logger"
)

// maxEmbedBatch is the most texts sent in one embedding request; the Gemini
// batch endpoint rejects larger batches.
const maxEmbedBatch = 100

// GeminiEmbedder adapts the genai embedding endpoint to eino's Embedder.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: model}
}

func (e *GeminiEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed content: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}
	out := make([][]float64, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		v := make([]float64, len(emb.Values))
		for j, f := range emb.Values {
			v[j] = float64(f)
		}
		out[i] = v
	}
	return out, nil
}

var _ embedding.Embedder = (*GeminiEmbedder)(nil)

// EmbeddingMatcher scores by cosine similarity of embeddings. Query vectors
// are cached; when the embedder fails the lexical scorer answers instead.
type EmbeddingMatcher struct {
	embedder embedding.Embedder
	cache    *lru.Cache
}

func NewEmbeddingMatcher(embedder embedding.Embedder, cacheSize int) (*EmbeddingMatcher, error) {
	if embedder == nil {
		return nil, errors.New("embedding matcher: nil embedder")
	}
	if cacheSize <= 0 {
		cacheSize = 512
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return &EmbeddingMatcher{embedder: embedder, cache: cache}, nil
}

func (m *EmbeddingMatcher) Name() string { return "embedding" }

func (m *EmbeddingMatcher) Build(ctx context.Context, items []model.CatalogItem) (Scorer, error) {
	lex := buildLexical(items)
	if len(items) == 0 {
		return lex, nil
	}
	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.CompositeText()
	}
	vecs := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))
		part, err := m.embedder.EmbedStrings(ctx, texts[start:end])
		if err == nil && len(part) != end-start {
			err = fmt.Errorf("got %d vectors for %d items", len(part), end-start)
		}
		if err != nil {
			logx.Warn().Err(err).Int("items", len(items)).Int("offset", start).Msg("catalog embedding failed, using lexical scorer")
			return lex, nil
		}
		for _, v := range part {
			vecs = append(vecs, normalize(v))
		}
	}
	return &embeddingScorer{m: m, docs: vecs, lexical: lex}, nil
}

type embeddingScorer struct {
	m       *EmbeddingMatcher
	docs    [][]float64
	lexical *lexicalScorer
}

func (s *embeddingScorer) Score(ctx context.Context, query string) []float64 {
	q, err := s.m.queryVector(ctx, query)
	if err != nil {
		logx.Warn().Err(err).Str("query", query).Msg("query embedding failed, using lexical scorer")
		return s.lexical.Score(ctx, query)
	}
	out := make([]float64, len(s.docs))
	for i, d := range s.docs {
		out[i] = max(dot(q, d), 0)
	}
	return out
}

func (s *embeddingScorer) Related(i int) []float64 {
	out := make([]float64, len(s.docs))
	if i < 0 || i >= len(s.docs) {
		return out
	}
	for j, d := range s.docs {
		out[j] = max(dot(s.docs[i], d), 0)
	}
	return out
}

func (m *EmbeddingMatcher) queryVector(ctx context.Context, query string) ([]float64, error) {
	key := strings.Join(tokenize(query), " ")
	if key == "" {
		return nil, errors.New("empty query")
	}
	if v, ok := m.cache.Get(key); ok {
		return v.([]float64), nil
	}
	vecs, err := m.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("got %d vectors for one query", len(vecs))
	}
	v := normalize(vecs[0])
	m.cache.Add(key, v)
	return v, nil
}

func normalize(v []float64) []float64 {
	var n float64
	for _, x := range v {
		n += x * x
	}
	if n == 0 {
		return v
	}
	n = math.Sqrt(n)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range min(len(a), len(b)) {
		s += a[i] * b[i]
	}
	return s
}
