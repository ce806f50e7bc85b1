package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisFixedWindowLimiter shares one counter per key and window across every
// process pointed at the same Redis.
type RedisFixedWindowLimiter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisFixedWindowLimiter(client redis.UniversalClient, prefix string) *RedisFixedWindowLimiter {
	if prefix == "" {
		prefix = "live-voting"
	}
	return &RedisFixedWindowLimiter{client: client, prefix: prefix, now: time.Now}
}

func (l *RedisFixedWindowLimiter) Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	policy = policy.normalized()
	now := l.now()
	window := policy.Window
	start := now.Truncate(window)
	resetAt := start.Add(window)
	redisKey := fmt.Sprintf("%s:rl:%s:%d", l.prefix, key, start.UnixMilli())

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, window+time.Second)
		return nil
	})
	if err != nil {
		return Decision{}, err
	}
	count := int(incr.Val())
	if count > policy.Limit {
		return Decision{RetryAfter: resetAt.Sub(now), ResetAt: resetAt}, nil
	}
	return Decision{
		Allowed:   true,
		Remaining: policy.Limit - count,
		ResetAt:   resetAt,
	}, nil
}
