package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"webscout/internal/ports"
)

const redisKeyPrefix = "webscout:summary:"

// Redis is a summary cache backed by a Redis instance, for deployments
// that want the cache to survive process restarts. Entries expire by
// TTL instead of LRU eviction. Cache failures are logged and treated
// as misses; the cache is an optimization, never a dependency.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.SummaryCache = (*Redis)(nil)

// NewRedis wires a client for the given address.
func NewRedis(addr string, ttl time.Duration, logger *slog.Logger) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
		logger: logger,
	}
}

// Get looks a summary up by content hash.
func (c *Redis) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, redisKeyPrefix+key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("summary cache get failed", "error", err)
		}
		return "", false
	}
	return val, true
}

// Set stores a summary with the configured TTL.
func (c *Redis) Set(ctx context.Context, key, summary string) {
	if err := c.client.Set(ctx, redisKeyPrefix+key, summary, c.ttl).Err(); err != nil {
		if c.logger != nil {
			c.logger.Warn("summary cache set failed", "error", err)
		}
	}
}

// Close releases the underlying connection pool.
func (c *Redis) Close() error {
	return c.client.Close()
}
