package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Bonsai515/pricefeed-go/pkg/metrics"
	"github.com/Bonsai515/pricefeed-go/pkg/server/aggregator"
)

// entry pairs a value with its expiry. Entries are replaced whole, never
// mutated in place, so readers cannot observe partial writes.
type entry struct {
	value  aggregator.AggregatedPrice
	expiry time.Time
}

// MemoryCache is the in-process cache backend.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// Ensure MemoryCache implements Cache interface.
var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
	}
}

// Get returns the cached price for a token. Expired entries are evicted
// lazily and reported as a miss.
func (c *MemoryCache) Get(_ context.Context, token string) (aggregator.AggregatedPrice, bool) {
	c.mu.RLock()
	e, ok := c.entries[token]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		metrics.RecordCacheMiss()
		return aggregator.AggregatedPrice{}, false
	}

	if !time.Now().Before(e.expiry) {
		// Lazy expiry: drop the stale entry unless a newer one raced in.
		c.mu.Lock()
		if current, still := c.entries[token]; still && current.expiry.Equal(e.expiry) {
			delete(c.entries, token)
		}
		c.mu.Unlock()

		c.misses.Add(1)
		metrics.RecordCacheMiss()
		return aggregator.AggregatedPrice{}, false
	}

	c.hits.Add(1)
	metrics.RecordCacheHit()
	return e.value, true
}

// Set stores a price for a token with the given TTL. Last write wins.
func (c *MemoryCache) Set(_ context.Context, token string, price aggregator.AggregatedPrice, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[token] = entry{
		value:  price,
		expiry: time.Now().Add(ttl),
	}
	c.mu.Unlock()
	return nil
}

// Invalidate removes a single entry. Idempotent.
func (c *MemoryCache) Invalidate(_ context.Context, token string) error {
	c.mu.Lock()
	delete(c.entries, token)
	c.mu.Unlock()
	return nil
}

// InvalidateAll clears every entry.
func (c *MemoryCache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	return nil
}

// Stats returns hit/miss counters and the current entry count.
func (c *MemoryCache) Stats(_ context.Context) Stats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()

	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   size,
	}
}

// Close is a no-op for the memory backend.
func (c *MemoryCache) Close() error {
	return nil
}
