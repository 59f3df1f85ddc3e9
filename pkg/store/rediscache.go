package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// VisitorCache is a Redis lookaside mapping exactHash -> visitorID. A hit
// lets reconciliation skip candidate matching entirely for a fingerprint it
// has already resolved. The cache is best-effort: callers treat every error
// as a miss and never fail a request on it.
type VisitorCache struct {
	client *redis.Client
	ttl    time.Duration
}

const visitorCachePrefix = "revisit:visitor:"

// NewVisitorCache wraps an existing Redis client; the connection is verified
// lazily on first use so a cold cache does not block startup.
func NewVisitorCache(client *redis.Client, ttl time.Duration) *VisitorCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &VisitorCache{client: client, ttl: ttl}
}

// Get returns the cached visitor ID for an exact hash, or "" on miss or
// error.
func (c *VisitorCache) Get(ctx context.Context, exactHash string) string {
	if c == nil {
		return ""
	}
	v, err := c.client.Get(ctx, visitorCachePrefix+exactHash).Result()
	if err != nil {
		return ""
	}
	return v
}

// Set records the mapping with the configured TTL; errors are swallowed.
func (c *VisitorCache) Set(ctx context.Context, exactHash, visitorID string) {
	if c == nil || exactHash == "" || visitorID == "" {
		return
	}
	c.client.Set(ctx, visitorCachePrefix+exactHash, visitorID, c.ttl)
}

// Close releases the Redis connection.
func (c *VisitorCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
