package health

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisChecker probes a Redis server with PING.
type RedisChecker struct {
	name   string
	client redis.UniversalClient
}

// NewRedisChecker creates a checker for client.
func NewRedisChecker(name string, client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{name: name, client: client}
}

// Name returns the dependency name.
func (c *RedisChecker) Name() string {
	return c.name
}

// Check sends PING. Any error, including a non-PONG reply, is down.
func (c *RedisChecker) Check(ctx context.Context) Result {
	start := time.Now()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return Down("redis ping failed", err).WithLatency(time.Since(start))
	}
	return Healthy("redis reachable").WithLatency(time.Since(start))
}

var _ Checker = (*RedisChecker)(nil)
