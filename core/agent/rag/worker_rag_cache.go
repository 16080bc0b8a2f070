// Package rag provides semantic retrieval over message embeddings.
package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/InboxGenie/IG-Gmail-MCP/core/port/out"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// =============================================================================
// Embedding Cache (L1)
// =============================================================================

// EmbeddingCache keeps recent query embeddings in memory.
type EmbeddingCache struct {
	cache   map[string]*cachedEmbedding
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	hits   int64
	misses int64
}

type cachedEmbedding struct {
	embedding []float32
	createdAt time.Time
}

// EmbeddingCacheConfig configures the embedding cache.
type EmbeddingCacheConfig struct {
	MaxSize int
	TTL     time.Duration
}

// DefaultEmbeddingCacheConfig returns sensible defaults.
func DefaultEmbeddingCacheConfig() *EmbeddingCacheConfig {
	return &EmbeddingCacheConfig{
		MaxSize: 10000,
		TTL:     24 * time.Hour,
	}
}

// NewEmbeddingCache creates a new embedding cache. Expired entries are dropped lazily.
func NewEmbeddingCache(config *EmbeddingCacheConfig) *EmbeddingCache {
	if config == nil {
		config = DefaultEmbeddingCacheConfig()
	}
	return &EmbeddingCache{
		cache:   make(map[string]*cachedEmbedding),
		maxSize: max(config.MaxSize, 1),
		ttl:     config.TTL,
		now:     time.Now,
	}
}

// Get retrieves an embedding by cache key.
func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache[key]
	if ok && c.ttl > 0 && c.now().Sub(entry.createdAt) > c.ttl {
		delete(c.cache, key)
		ok = false
	}
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	return entry.embedding, true
}

// Set stores an embedding, evicting the oldest entry when full.
func (c *EmbeddingCache) Set(key string, embedding []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache[key]; !exists && len(c.cache) >= c.maxSize {
		c.evictOldest()
	}
	c.cache[key] = &cachedEmbedding{embedding: embedding, createdAt: c.now()}
}

// Stats returns cache statistics.
func (c *EmbeddingCache) Stats() (hits, misses int64, hitRate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hits, misses = c.hits, c.misses
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return
}

func (c *EmbeddingCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range c.cache {
		if oldestKey == "" || entry.createdAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.createdAt
		}
	}
	if oldestKey != "" {
		delete(c.cache, oldestKey)
	}
}

// hashText keys embeddings by content; the model name is part of the key so a
// model change never serves stale vectors.
func hashText(model, text string) string {
	hash := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(hash[:16])
}

// =============================================================================
// Cached Embedder (L1 memory, L2 Redis)
// =============================================================================

// RemoteCache is the shared second-level cache, satisfied by cache.RedisCache.
type RemoteCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// CachedEmbedder wraps an embedder with a two-level cache. Concurrent requests
// for the same text share one upstream call.
type CachedEmbedder struct {
	embedder out.Embedder
	model    string
	l1       *EmbeddingCache
	l2       RemoteCache
	l2TTL    time.Duration
	group    singleflight.Group
}

// NewCachedEmbedder creates a cached embedder. l2 may be nil.
func NewCachedEmbedder(embedder out.Embedder, model string, l1 *EmbeddingCache, l2 RemoteCache, l2TTL time.Duration) *CachedEmbedder {
	if l1 == nil {
		l1 = NewEmbeddingCache(nil)
	}
	return &CachedEmbedder{
		embedder: embedder,
		model:    model,
		l1:       l1,
		l2:       l2,
		l2TTL:    l2TTL,
	}
}

// Embed returns the embedding of text, consulting L1 then L2 before the model.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := hashText(e.model, text)
	if v, ok := e.l1.Get(key); ok {
		return v, nil
	}

	// The shared call outlives any single caller; each caller only stops waiting.
	shared := context.WithoutCancel(ctx)
	ch := e.group.DoChan(key, func() (interface{}, error) {
		ctx := shared
		if e.l2 != nil {
			var cached []float32
			found, err := e.l2.GetJSON(ctx, key, &cached)
			if err != nil {
				logger.WithError(err).Warn("[CachedEmbedder] l2 read failed")
			} else if found && len(cached) > 0 {
				e.l1.Set(key, cached)
				return cached, nil
			}
		}

		embedding, err := e.embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		e.l1.Set(key, embedding)
		if e.l2 != nil {
			if err := e.l2.SetJSON(ctx, key, embedding, e.l2TTL); err != nil {
				logger.WithError(err).Warn("[CachedEmbedder] l2 write failed")
			}
		}
		return embedding, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]float32), nil
	}
}

// Stats returns L1 statistics.
func (e *CachedEmbedder) Stats() (hits, misses int64, hitRate float64) {
	return e.l1.Stats()
}
