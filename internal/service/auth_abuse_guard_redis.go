package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAuthAbuseGuard shares failure counters across processes. Each
// identity and client address has a hash with the failure count, the last
// failure time and the cooldown deadline.
type RedisAuthAbuseGuard struct {
	client redis.UniversalClient
	prefix string
	policy AuthAbusePolicy
	now    func() time.Time
}

func NewRedisAuthAbuseGuard(client redis.UniversalClient, prefix string, policy AuthAbusePolicy) *RedisAuthAbuseGuard {
	if prefix == "" {
		prefix = "live-voting"
	}
	return &RedisAuthAbuseGuard{client: client, prefix: prefix, policy: normalizeAuthAbusePolicy(policy), now: time.Now}
}

func (g *RedisAuthAbuseGuard) stateKey(scope AuthAbuseScope, dimension, value string) string {
	return fmt.Sprintf("%s:abuse:%s:%s:%s", g.prefix, scope, dimension, value)
}

func (g *RedisAuthAbuseGuard) keys(scope AuthAbuseScope, identity, ip string) []string {
	keys := []string{g.stateKey(scope, "id", normalizeAuthIdentity(identity))}
	if ip != "" {
		keys = append(keys, g.stateKey(scope, "ip", ip))
	}
	return keys
}

func (g *RedisAuthAbuseGuard) Check(ctx context.Context, scope AuthAbuseScope, identity, ip string) (time.Duration, error) {
	now := g.now()
	var wait time.Duration
	for _, key := range g.keys(scope, identity, ip) {
		vals, err := g.client.HGetAll(ctx, key).Result()
		if err != nil {
			return 0, fmt.Errorf("read abuse state: %w", err)
		}
		st, err := parseAbuseState(vals)
		if err != nil {
			return 0, err
		}
		if st.cooldownUntil.After(now) {
			wait = max(wait, st.cooldownUntil.Sub(now))
		}
	}
	return wait, nil
}

func (g *RedisAuthAbuseGuard) RegisterFailure(ctx context.Context, scope AuthAbuseScope, identity, ip string) (time.Duration, error) {
	var wait time.Duration
	for _, key := range g.keys(scope, identity, ip) {
		d, err := g.registerKey(ctx, key)
		if err != nil {
			return 0, err
		}
		wait = max(wait, d)
	}
	return wait, nil
}

// registerKey updates one hash under WATCH so concurrent failures from
// several processes are all counted.
func (g *RedisAuthAbuseGuard) registerKey(ctx context.Context, key string) (time.Duration, error) {
	var wait time.Duration
	txf := func(tx *redis.Tx) error {
		vals, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		st, err := parseAbuseState(vals)
		if err != nil {
			return err
		}
		now := g.now()
		if now.Sub(st.lastFailure) > g.policy.ResetWindow {
			st = abuseState{}
		}
		st.failures++
		st.lastFailure = now
		wait = g.policy.cooldownFor(st.failures)
		if wait > 0 {
			st.cooldownUntil = now.Add(wait)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"failures", st.failures,
				"last_failure_ms", st.lastFailure.UnixMilli(),
				"cooldown_until_ms", st.cooldownUntil.UnixMilli(),
			)
			pipe.PExpire(ctx, key, g.policy.ResetWindow+g.policy.MaxDelay)
			return nil
		})
		return err
	}
	for attempt := 0; attempt < 5; attempt++ {
		err := g.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("record abuse failure: %w", err)
		}
		return wait, nil
	}
	return 0, fmt.Errorf("record abuse failure: %w", redis.TxFailedErr)
}

func (g *RedisAuthAbuseGuard) Reset(ctx context.Context, scope AuthAbuseScope, identity, ip string) error {
	if err := g.client.Del(ctx, g.keys(scope, identity, ip)...).Err(); err != nil {
		return fmt.Errorf("reset abuse state: %w", err)
	}
	return nil
}

func parseAbuseState(vals map[string]string) (abuseState, error) {
	var st abuseState
	if len(vals) == 0 {
		return st, nil
	}
	parse := func(field string) (int64, error) {
		raw, ok := vals[field]
		if !ok || raw == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("malformed abuse state field %s: %w", field, err)
		}
		return n, nil
	}
	failures, err := parse("failures")
	if err != nil {
		return st, err
	}
	last, err := parse("last_failure_ms")
	if err != nil {
		return st, err
	}
	until, err := parse("cooldown_until_ms")
	if err != nil {
		return st, err
	}
	st.failures = failures
	if last > 0 {
		st.lastFailure = time.UnixMilli(last)
	}
	if until > 0 {
		st.cooldownUntil = time.UnixMilli(until)
	}
	return st, nil
}
