// Package ratelimit bounds submission rates per client key. A Redis sliding
// window keeps the limit consistent across instances; without Redis, or when
// Redis fails, an in-process token bucket takes over so the service keeps
// answering.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter allows up to capacity requests per key per window.
type Limiter struct {
	rdb      *redis.Client
	capacity int
	window   time.Duration
	fallback *localLimiter
}

// slidingWindow removes expired entries from the key's sorted set, counts the
// remainder and admits the request if under capacity, all atomically.
const slidingWindow = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local capacity = tonumber(ARGV[3])
local window_ms = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local count = redis.call('ZCARD', key)
if count < capacity then
	redis.call('ZADD', key, now, now .. ':' .. redis.call('INCR', key .. ':seq'))
	redis.call('PEXPIRE', key, window_ms + 1000)
	return 1
end
return 0
`

// New builds a limiter. rdb may be nil; the limiter then runs purely
// in-process.
func New(rdb *redis.Client, capacity int, window time.Duration) *Limiter {
	return &Limiter{
		rdb:      rdb,
		capacity: capacity,
		window:   window,
		fallback: newLocalLimiter(capacity, window),
	}
}

// Allow reports whether one more request under the key fits the window.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if l.rdb == nil {
		return l.fallback.allow(key)
	}
	now := time.Now()
	res, err := l.rdb.Eval(ctx, slidingWindow, []string{"ratelimit:sw:" + key},
		float64(now.UnixMicro())/1e6,
		float64(now.Add(-l.window).UnixMicro())/1e6,
		l.capacity,
		l.window.Milliseconds(),
	).Result()
	if err != nil {
		return l.fallback.allow(key)
	}
	n, ok := res.(int64)
	return ok && n == 1
}

// localLimiter is the in-process fallback: one token bucket per key, refilled
// whole-window at a time.
type localLimiter struct {
	capacity int
	window   time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	swept   time.Time
}

type bucket struct {
	tokens   int
	windowAt time.Time
}

func newLocalLimiter(capacity int, window time.Duration) *localLimiter {
	return &localLimiter{
		capacity: capacity,
		window:   window,
		buckets:  make(map[string]*bucket),
		swept:    time.Now(),
	}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok || now.Sub(b.windowAt) >= l.window {
		l.buckets[key] = &bucket{tokens: l.capacity - 1, windowAt: now}
		return true
	}
	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// sweep drops buckets idle for two windows. Amortized into allow so no
// background goroutine is needed.
func (l *localLimiter) sweep(now time.Time) {
	if now.Sub(l.swept) < l.window {
		return
	}
	for k, b := range l.buckets {
		if now.Sub(b.windowAt) >= 2*l.window {
			delete(l.buckets, k)
		}
	}
	l.swept = now
}
