package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"legal-rag/internal/rag"
)

// CachedEmbedder memoises query embeddings per provider for a bounded time. Entries may be stale
// with respect to a re-deployed model; the TTL bounds that window.
type CachedEmbedder struct {
	rag.Embedder
	cache *gocache.Cache
}

// NewCachedEmbedder wraps e with a cache expiring entries after ttl.
func NewCachedEmbedder(e rag.Embedder, ttl time.Duration) *CachedEmbedder {
	cleanup := ttl * 2
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &CachedEmbedder{Embedder: e, cache: gocache.New(ttl, cleanup)}
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.Provider().String() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Embed implements rag.Embedder. Failures are never cached.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if v, ok := c.cache.Get(key); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}
	vec, err := c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, vec)
	return vec, nil
}

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	return c.cache.ItemCount()
}
