package embed

import (
	"context"
	"time"

	"github.com/taliyo/assistant-go/src/cache"
)

const (
	embedCacheSize = 2048
	embedCacheTTL  = 30 * time.Minute
)

// CachedEmbedder memoizes embeddings by text hash. Repeated ingestion of the
// same chunks and repeated queries skip the provider round trip.
type CachedEmbedder struct {
	inner Embedder
	cache *cache.LRUCache
}

func NewCachedEmbedder(inner Embedder) *CachedEmbedder {
	return &CachedEmbedder{
		inner: inner,
		cache: cache.NewLRUCache(embedCacheSize, embedCacheTTL),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cache.HashKey(text)
	if v, ok := c.cache.Get(key); ok {
		return v.([]float32), nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, vec)
	return vec, nil
}
