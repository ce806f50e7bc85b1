package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sandeepkv93/live-voting-service/internal/observability"
)

// StatsBuffer holds the latest pending statistics per agenda together with a
// flag saying a flush is already scheduled. Offer overwrites the value and
// reports true only to the caller that must schedule the flush.
type StatsBuffer interface {
	Offer(ctx context.Context, key string, value []byte, window time.Duration) (bool, error)
	Take(ctx context.Context, key string) ([]byte, bool, error)
}

type LocalStatsBuffer struct {
	mu        sync.Mutex
	pending   map[string][]byte
	scheduled map[string]struct{}
}

func NewLocalStatsBuffer() *LocalStatsBuffer {
	return &LocalStatsBuffer{pending: make(map[string][]byte), scheduled: make(map[string]struct{})}
}

func (b *LocalStatsBuffer) Offer(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[key] = value
	if _, ok := b.scheduled[key]; ok {
		return false, nil
	}
	b.scheduled[key] = struct{}{}
	return true, nil
}

func (b *LocalStatsBuffer) Take(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	value, ok := b.pending[key]
	delete(b.pending, key)
	delete(b.scheduled, key)
	return value, ok, nil
}

// RedisStatsBuffer shares the pending value across processes. The timer flag
// is taken with SET NX PX so one process per window schedules the flush.
type RedisStatsBuffer struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStatsBuffer(client redis.UniversalClient, prefix string) *RedisStatsBuffer {
	if prefix == "" {
		prefix = "live-voting"
	}
	return &RedisStatsBuffer{client: client, prefix: prefix + ":stats:"}
}

func (b *RedisStatsBuffer) Offer(ctx context.Context, key string, value []byte, window time.Duration) (bool, error) {
	// The flag outlives the window so a crashed scheduler cannot block the
	// agenda for longer than a few windows.
	flagTTL := 4 * window
	if flagTTL < time.Second {
		flagTTL = time.Second
	}
	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.valueKey(key), value, flagTTL)
	won := pipe.SetNX(ctx, b.flagKey(key), "1", flagTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return won.Val(), nil
}

func (b *RedisStatsBuffer) Take(ctx context.Context, key string) ([]byte, bool, error) {
	pipe := b.client.TxPipeline()
	get := pipe.Get(ctx, b.valueKey(key))
	pipe.Del(ctx, b.valueKey(key), b.flagKey(key))
	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, err
	}
	value, err := get.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (b *RedisStatsBuffer) valueKey(key string) string { return b.prefix + key + ":value" }

func (b *RedisStatsBuffer) flagKey(key string) string { return b.prefix + key + ":timer" }

// StatsThrottler coalesces bursts of statistics updates per agenda into at
// most one flush per window carrying the last offered value.
type StatsThrottler struct {
	buffer  StatsBuffer
	window  time.Duration
	backend string
	flush   func(ctx context.Context, key string, value []byte)
	logger  *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func NewStatsThrottler(buffer StatsBuffer, window time.Duration, backend string, logger *slog.Logger, flush func(ctx context.Context, key string, value []byte)) *StatsThrottler {
	if window <= 0 {
		window = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsThrottler{
		buffer:  buffer,
		window:  window,
		backend: backend,
		flush:   flush,
		logger:  logger,
		timers:  make(map[string]*time.Timer),
	}
}

func (t *StatsThrottler) Offer(ctx context.Context, key string, value []byte) {
	schedule, err := t.buffer.Offer(ctx, key, value, t.window)
	if err != nil {
		t.logger.WarnContext(ctx, "stats buffer offer failed", "key", key, "error", err)
		return
	}
	if !schedule {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.timers[key] = time.AfterFunc(t.window, func() { t.fire(key) })
}

func (t *StatsThrottler) fire(key string) {
	t.mu.Lock()
	delete(t.timers, key)
	t.mu.Unlock()

	ctx := context.Background()
	value, ok, err := t.buffer.Take(ctx, key)
	if err != nil {
		t.logger.Warn("stats buffer take failed", "key", key, "error", err)
		return
	}
	if !ok {
		return
	}
	observability.RecordStatsFlush(ctx, t.backend)
	t.flush(ctx, key, value)
}

// Close cancels scheduled flushes.
func (t *StatsThrottler) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
}
