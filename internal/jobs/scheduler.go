package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SettingsReloader refreshes the in-memory settings snapshot.
type SettingsReloader interface {
	Reload(ctx context.Context, trigger string) error
}

// Sweeper drops expired in-process entries and reports how many went.
type Sweeper interface {
	Sweep() int
}

type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
	}
}

// ScheduleSettingsReload re-reads runtime settings every interval so limit
// changes made by another process are picked up without a restart.
func (s *Scheduler) ScheduleSettingsReload(settings SettingsReloader, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	_, err := s.cron.AddFunc(every(interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := settings.Reload(ctx, "schedule"); err != nil {
			s.logger.Warn("scheduled settings reload failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule settings reload: %w", err)
	}
	return nil
}

func (s *Scheduler) ScheduleSweep(name string, sweeper Sweeper, interval time.Duration) error {
	if sweeper == nil || interval <= 0 {
		return nil
	}
	_, err := s.cron.AddFunc(every(interval), func() {
		if n := sweeper.Sweep(); n > 0 {
			s.logger.Debug("swept expired entries", "store", name, "removed", n)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s sweep: %w", name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func every(d time.Duration) string {
	if d < time.Second {
		d = time.Second
	}
	return "@every " + d.String()
}
