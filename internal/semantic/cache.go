package semantic

import (
	"context"
	"time"

	"github.com/worklens/backend/pkg/utils"
)

// EmbeddingCache stores vectors keyed by a hash of their source text.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

// CachedEmbedder serves vectors from the cache and only sends cache misses
// to the underlying embedder. Cache errors are treated as misses.
type CachedEmbedder struct {
	inner Embedder
	cache EmbeddingCache
	ttl   time.Duration
}

func NewCachedEmbedder(inner Embedder, cache EmbeddingCache, ttl time.Duration) *CachedEmbedder {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &CachedEmbedder{inner: inner, cache: cache, ttl: ttl}
}

func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missTexts []string
	var missIndexes []int

	for i, text := range texts {
		vector, ok, err := e.cache.GetEmbedding(ctx, utils.HashString(text))
		if err == nil && ok {
			results[i] = vector
			continue
		}
		missTexts = append(missTexts, text)
		missIndexes = append(missIndexes, i)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	vectors, err := e.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for i, idx := range missIndexes {
		if i >= len(vectors) {
			break
		}
		results[idx] = vectors[i]
		_ = e.cache.SetEmbedding(ctx, utils.HashString(missTexts[i]), vectors[i], e.ttl)
	}

	return results, nil
}
