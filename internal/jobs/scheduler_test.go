package jobs

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type countingReloader struct{ n atomic.Int32 }

func (c *countingReloader) Reload(context.Context, string) error {
	c.n.Add(1)
	return nil
}

type countingSweeper struct{ n atomic.Int32 }

func (c *countingSweeper) Sweep() int {
	c.n.Add(1)
	return 0
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := NewScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	reloader := &countingReloader{}
	sweeper := &countingSweeper{}
	if err := s.ScheduleSettingsReload(reloader, time.Second); err != nil {
		t.Fatalf("schedule reload: %v", err)
	}
	if err := s.ScheduleSweep("reconnect", sweeper, time.Second); err != nil {
		t.Fatalf("schedule sweep: %v", err)
	}
	s.Start()
	t.Cleanup(func() { s.Stop(context.Background()) })

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if reloader.n.Load() > 0 && sweeper.n.Load() > 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("jobs did not run: reloads=%d sweeps=%d", reloader.n.Load(), sweeper.n.Load())
}

func TestEveryClampsToOneSecond(t *testing.T) {
	if got := every(100 * time.Millisecond); got != "@every 1s" {
		t.Fatalf("unexpected cron expression %q", got)
	}
	if got := every(30 * time.Second); got != "@every 30s" {
		t.Fatalf("unexpected cron expression %q", got)
	}
}

func TestScheduleSkipsDisabledJobs(t *testing.T) {
	s := NewScheduler(nil)
	if err := s.ScheduleSettingsReload(&countingReloader{}, 0); err != nil {
		t.Fatalf("expected nil error for disabled reload, got %v", err)
	}
	if err := s.ScheduleSweep("none", nil, time.Second); err != nil {
		t.Fatalf("expected nil error for nil sweeper, got %v", err)
	}
	if n := len(s.cron.Entries()); n != 0 {
		t.Fatalf("expected no entries, got %d", n)
	}
}
