package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Bonsai515/pricefeed-go/pkg/logging"
	"github.com/Bonsai515/pricefeed-go/pkg/metrics"
	"github.com/Bonsai515/pricefeed-go/pkg/server/aggregator"
)

const redisKeyPrefix = "pricefeed:price:"

// RedisCache stores aggregated prices in Redis with native key expiry.
// Values are JSON-encoded AggregatedPrice documents.
type RedisCache struct {
	client *redis.Client
	logger *logging.Logger
	hits   atomic.Uint64
	misses atomic.Uint64
}

// Ensure RedisCache implements Cache interface.
var _ Cache = (*RedisCache)(nil)

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, db int, logger *logging.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("Connected to redis cache", "addr", addr, "db", db)

	return &RedisCache{
		client: client,
		logger: logger,
	}, nil
}

// Get returns the cached price for a token. Redis handles expiry itself, so
// a missing key covers both never-set and expired entries.
func (c *RedisCache) Get(ctx context.Context, token string) (aggregator.AggregatedPrice, bool) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+token).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Redis get failed", "token", token, "error", err.Error())
		}
		c.misses.Add(1)
		metrics.RecordCacheMiss()
		return aggregator.AggregatedPrice{}, false
	}

	var price aggregator.AggregatedPrice
	if err := json.Unmarshal(raw, &price); err != nil {
		c.logger.Warn("Discarding undecodable cache entry", "token", token, "error", err.Error())
		c.client.Del(ctx, redisKeyPrefix+token)
		c.misses.Add(1)
		metrics.RecordCacheMiss()
		return aggregator.AggregatedPrice{}, false
	}

	c.hits.Add(1)
	metrics.RecordCacheHit()
	return price, true
}

// Set stores a price for a token with the given TTL.
func (c *RedisCache) Set(ctx context.Context, token string, price aggregator.AggregatedPrice, ttl time.Duration) error {
	raw, err := json.Marshal(price)
	if err != nil {
		return fmt.Errorf("encode price: %w", err)
	}

	if err := c.client.Set(ctx, redisKeyPrefix+token, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate removes a single entry. Idempotent.
func (c *RedisCache) Invalidate(ctx context.Context, token string) error {
	if err := c.client.Del(ctx, redisKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// InvalidateAll clears every price entry under the key prefix, leaving
// unrelated keys in the same database untouched.
func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}

// Stats returns hit/miss counters and the current entry count. Counters are
// per-process; the size is read live from Redis.
func (c *RedisCache) Stats(ctx context.Context) Stats {
	size := 0
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		size++
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("Redis scan failed", "error", err.Error())
	}

	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   size,
	}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
