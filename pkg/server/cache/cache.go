// Package cache provides short-TTL storage for aggregated prices.
package cache

import (
	"context"
	"time"

	"github.com/Bonsai515/pricefeed-go/pkg/server/aggregator"
)

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

// Cache maps tokens to their last aggregated price. Expired entries behave
// as a miss on Get; a served value is never past its expiry.
type Cache interface {
	// Get returns the cached price for a token, or false on miss/expiry.
	Get(ctx context.Context, token string) (aggregator.AggregatedPrice, bool)

	// Set stores a price for a token with the given TTL, replacing any
	// previous entry as a whole value.
	Set(ctx context.Context, token string, price aggregator.AggregatedPrice, ttl time.Duration) error

	// Invalidate removes a single entry. Removing a missing key is a no-op.
	Invalidate(ctx context.Context, token string) error

	// InvalidateAll clears every entry.
	InvalidateAll(ctx context.Context) error

	// Stats returns hit/miss counters and the current entry count.
	Stats(ctx context.Context) Stats

	// Close releases backend resources.
	Close() error
}
