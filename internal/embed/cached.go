package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of cached vectors. At 384
// dimensions that is roughly 1.5MB of memory.
const DefaultCacheSize = 1000

// CachedClient wraps a Client with an LRU cache keyed on text and
// model, so re-embedding unchanged chunks and repeated queries skip
// the service entirely.
type CachedClient struct {
	inner Client
	cache *lru.Cache[string, []float32]
}

// NewCachedClient wraps inner with a cache of the given size.
func NewCachedClient(inner Client, cacheSize int) *CachedClient {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedClient{inner: inner, cache: cache}
}

// cacheKey hashes text together with the model name so switching
// models never serves stale vectors.
func (c *CachedClient) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + c.inner.ModelName()))
	return hex.EncodeToString(sum[:])
}

// Embed returns the cached vector when present, computing it otherwise.
func (c *CachedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch serves what it can from cache and embeds the rest in one
// inner call, preserving input order.
func (c *CachedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return results, nil
	}

	vectors, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, vec := range vectors {
		results[missIdx[j]] = vec
		c.cache.Add(c.cacheKey(missTexts[j]), vec)
	}
	return results, nil
}

// Dimensions returns the inner client's vector length.
func (c *CachedClient) Dimensions() int { return c.inner.Dimensions() }

// ModelName returns the inner client's model identifier.
func (c *CachedClient) ModelName() string { return c.inner.ModelName() }

// Available reports the inner client's availability.
func (c *CachedClient) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

// Close closes the inner client.
func (c *CachedClient) Close() error { return c.inner.Close() }

// Len returns the number of cached vectors.
func (c *CachedClient) Len() int { return c.cache.Len() }
