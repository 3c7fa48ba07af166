package embedding

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of embeddings kept when no size is given.
const DefaultCacheSize = 10000

// EmbeddingCache is a concurrency-safe LRU of embeddings keyed by text.
type EmbeddingCache struct {
	lru *lru.Cache[string, []float32]
}

// NewEmbeddingCache creates a cache holding up to capacity entries.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	c, _ := lru.New[string, []float32](capacity)
	return &EmbeddingCache{lru: c}
}

// Get returns the cached embedding for key if present.
func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	return c.lru.Get(key)
}

// Set stores the embedding for key, evicting the least recently used entry if full.
func (c *EmbeddingCache) Set(key string, value []float32) {
	c.lru.Add(key, value)
}

// Len returns the number of cached entries.
func (c *EmbeddingCache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *EmbeddingCache) Purge() {
	c.lru.Purge()
}

// CachedEmbedder wraps an Embedder and memoizes results by exact text.
type CachedEmbedder struct {
	inner Embedder
	cache *EmbeddingCache
}

// NewCachedEmbedder wraps inner with a cache of cacheSize entries.
func NewCachedEmbedder(inner Embedder, cacheSize int) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: NewEmbeddingCache(cacheSize)}
}

// Embed returns the cached embedding or computes and caches it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ValidateText(text); err != nil {
		return nil, err
	}
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, v)
	return v, nil
}

// EmbedBatch serves cached texts from memory and embeds the rest in one inner batch.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	var (
		missIdx   []int
		missTexts []string
	)
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	fresh, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = fresh[j]
		c.cache.Set(texts[i], fresh[j])
	}
	return out, nil
}

// Dimensions returns the inner embedder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Close closes the inner embedder and drops the cache.
func (c *CachedEmbedder) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
