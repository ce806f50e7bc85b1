package realtime

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisClientForTest(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	return server, client
}

type flushRecorder struct {
	mu     sync.Mutex
	values []string
	done   chan struct{}
}

func newFlushRecorder() *flushRecorder {
	return &flushRecorder{done: make(chan struct{}, 16)}
}

func (r *flushRecorder) flush(_ context.Context, _ string, value []byte) {
	r.mu.Lock()
	r.values = append(r.values, string(value))
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *flushRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.values...)
}

func TestStatsThrottlerCoalescesBurst(t *testing.T) {
	buffers := map[string]func(t *testing.T) StatsBuffer{
		"local": func(*testing.T) StatsBuffer { return NewLocalStatsBuffer() },
		"redis": func(t *testing.T) StatsBuffer {
			_, client := newRedisClientForTest(t)
			return NewRedisStatsBuffer(client, "test")
		},
	}
	for name, newBuffer := range buffers {
		t.Run(name, func(t *testing.T) {
			rec := newFlushRecorder()
			throttler := NewStatsThrottler(newBuffer(t), 200*time.Millisecond, name, nil, rec.flush)
			t.Cleanup(throttler.Close)

			ctx := context.Background()
			var wg sync.WaitGroup
			for i := 0; i < 49; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					throttler.Offer(ctx, "agenda-1", []byte(fmt.Sprintf("v%d", i)))
				}(i)
			}
			wg.Wait()
			throttler.Offer(ctx, "agenda-1", []byte("last"))

			select {
			case <-rec.done:
			case <-time.After(2 * time.Second):
				t.Fatal("flush never fired")
			}
			time.Sleep(300 * time.Millisecond)

			got := rec.snapshot()
			if len(got) != 1 {
				t.Fatalf("expected exactly one flush, got %d: %v", len(got), got)
			}
			if got[0] != "last" {
				t.Fatalf("expected last offered value, got %q", got[0])
			}
		})
	}
}

func TestStatsThrottlerSchedulesAgainAfterFlush(t *testing.T) {
	rec := newFlushRecorder()
	throttler := NewStatsThrottler(NewLocalStatsBuffer(), 30*time.Millisecond, "local", nil, rec.flush)
	t.Cleanup(throttler.Close)
	ctx := context.Background()

	for _, v := range []string{"a", "b"} {
		throttler.Offer(ctx, "agenda-1", []byte(v))
		select {
		case <-rec.done:
		case <-time.After(time.Second):
			t.Fatalf("flush for %s never fired", v)
		}
	}
	if got := rec.snapshot(); len(got) != 2 || got[1] != "b" {
		t.Fatalf("unexpected flushes: %v", got)
	}
}

func TestStatsThrottlerKeysAreIndependent(t *testing.T) {
	rec := newFlushRecorder()
	throttler := NewStatsThrottler(NewLocalStatsBuffer(), 30*time.Millisecond, "local", nil, rec.flush)
	t.Cleanup(throttler.Close)
	ctx := context.Background()

	throttler.Offer(ctx, "agenda-1", []byte("x"))
	throttler.Offer(ctx, "agenda-2", []byte("y"))
	for i := 0; i < 2; i++ {
		select {
		case <-rec.done:
		case <-time.After(time.Second):
			t.Fatal("expected a flush per agenda")
		}
	}
}

func TestRedisStatsBufferOffer(t *testing.T) {
	_, client := newRedisClientForTest(t)
	buffer := NewRedisStatsBuffer(client, "test")
	ctx := context.Background()

	first, err := buffer.Offer(ctx, "a", []byte("1"), 500*time.Millisecond)
	if err != nil || !first {
		t.Fatalf("first offer should schedule, got %v %v", first, err)
	}
	second, err := buffer.Offer(ctx, "a", []byte("2"), 500*time.Millisecond)
	if err != nil || second {
		t.Fatalf("second offer must not schedule, got %v %v", second, err)
	}
	value, ok, err := buffer.Take(ctx, "a")
	if err != nil || !ok || string(value) != "2" {
		t.Fatalf("expected last value, got %q %v %v", value, ok, err)
	}
	if _, ok, _ := buffer.Take(ctx, "a"); ok {
		t.Fatal("take must clear the pending value")
	}
	again, err := buffer.Offer(ctx, "a", []byte("3"), 500*time.Millisecond)
	if err != nil || !again {
		t.Fatalf("offer after take should schedule, got %v %v", again, err)
	}
}
