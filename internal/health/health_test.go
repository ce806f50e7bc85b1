package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestProbeRunnerAggregatesResults(t *testing.T) {
	ok := CheckerFunc(func(context.Context) CheckResult { return CheckResult{Name: "a", Healthy: true} })
	bad := CheckerFunc(func(context.Context) CheckResult { return CheckResult{Name: "b", Error: "down"} })

	ready, results := NewProbeRunner(time.Second, 0, ok).Ready(context.Background())
	if !ready || len(results) != 1 {
		t.Fatalf("expected ready with one result, got %v %+v", ready, results)
	}
	ready, results = NewProbeRunner(time.Second, 0, ok, bad).Ready(context.Background())
	if ready || len(results) != 2 || results[1].Name != "b" {
		t.Fatalf("expected unready with ordered results, got %v %+v", ready, results)
	}
}

func TestProbeRunnerCachesWithinTTL(t *testing.T) {
	var calls atomic.Int32
	c := CheckerFunc(func(context.Context) CheckResult {
		calls.Add(1)
		return CheckResult{Name: "x", Healthy: true}
	})
	p := NewProbeRunner(time.Second, time.Minute, c)
	p.Ready(context.Background())
	p.Ready(context.Background())
	if calls.Load() != 1 {
		t.Fatalf("expected cached result, checker ran %d times", calls.Load())
	}
}

func TestProbeRunnerDraining(t *testing.T) {
	p := NewProbeRunner(time.Second, 0)
	if ready, _ := p.Ready(context.Background()); !ready {
		t.Fatal("expected ready with no checkers")
	}
	p.MarkDraining()
	if ready, _ := p.Ready(context.Background()); ready {
		t.Fatal("expected unready after MarkDraining")
	}
}

func TestDependencyCheckers(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:health_checkers?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ready, results := NewProbeRunner(time.Second, 0, DBChecker(db), RedisChecker(client)).Ready(context.Background())
	if !ready {
		t.Fatalf("expected dependencies healthy, got %+v", results)
	}

	mr.Close()
	ready, results = NewProbeRunner(time.Second, 0, RedisChecker(client)).Ready(context.Background())
	if ready || results[0].Error == "" {
		t.Fatalf("expected redis failure after shutdown, got %+v", results)
	}
}
