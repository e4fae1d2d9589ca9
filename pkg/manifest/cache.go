package manifest

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/depgraph/pkg/workspace"
)

// CachingSource keeps recently fetched manifests in an in-process LRU.
// Only successful fetches are cached.
type CachingSource struct {
	next   Source
	cache  *lru.LRU[string, *Manifest]
	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// NewCachingSource wraps next with an LRU of at most size entries that expire after ttl
func NewCachingSource(next Source, size int, ttl time.Duration) *CachingSource {
	if size < 1 {
		size = 1
	}
	return &CachingSource{
		next:  next,
		cache: lru.NewLRU[string, *Manifest](size, nil, ttl),
	}
}

// Fetch returns a cached manifest or fetches it from the wrapped Source
func (c *CachingSource) Fetch(ctx context.Context, repo workspace.Repository) (*Manifest, error) {
	key := cacheKey(repo)
	if m, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return m, nil
	}
	c.misses.Add(1)

	m, err := c.next.Fetch(ctx, repo)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, m)
	return m, nil
}

// Invalidate drops the cached manifest of a repository
func (c *CachingSource) Invalidate(repo workspace.Repository) {
	c.cache.Remove(cacheKey(repo))
}

// Stats returns hit/miss counters and the current entry count
func (c *CachingSource) Stats() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.cache.Len(),
	}
}
