package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisFixedWindow shares fixed-window counters between instances.
// Each (identity, window) pair is one key incremented with INCR and expired
// shortly after the window ends.
type RedisFixedWindow struct {
	rdb    redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// RedisOption configures a RedisFixedWindow
type RedisOption func(*RedisFixedWindow)

// WithRedisPrefix sets the key prefix
func WithRedisPrefix(prefix string) RedisOption {
	return func(l *RedisFixedWindow) { l.prefix = strings.Trim(prefix, ":") }
}

// WithRedisNow overrides the clock
func WithRedisNow(now func() time.Time) RedisOption {
	return func(l *RedisFixedWindow) { l.now = now }
}

// NewRedisFixedWindow allows limit requests per window per identity
func NewRedisFixedWindow(rdb redis.UniversalClient, limit int, window time.Duration, opts ...RedisOption) *RedisFixedWindow {
	l := &RedisFixedWindow{
		rdb:    rdb,
		prefix: "ratelimit",
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow increments identity's counter for the current window
func (l *RedisFixedWindow) Allow(ctx context.Context, identity string) (Decision, error) {
	now := l.now()
	start, retryAfter := windowFor(now, l.window)
	key := l.key(identity, start)

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// keep the key one extra window so clock skew between instances
	// doesn't reset a counter early
	pipe.PExpire(ctx, key, 2*l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("redis incr %s: %w", key, err)
	}

	count := int(incr.Val())
	return Decision{
		Allowed:     count <= l.limit,
		Count:       count,
		Limit:       l.limit,
		WindowStart: start,
		RetryAfter:  retryAfter,
	}, nil
}

// Close closes the redis client
func (l *RedisFixedWindow) Close() error {
	return l.rdb.Close()
}

func (l *RedisFixedWindow) key(identity string, start time.Time) string {
	return fmt.Sprintf("%s:%s:%d", l.prefix, identity, start.UnixMilli())
}

// HealthCheck pings the redis server
func (l *RedisFixedWindow) HealthCheck(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}
