package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Run schedules RunOnce on cfg.Schedule and blocks until ctx is cancelled.
// With runOnStart, a run starts immediately as well. Overlapping runs are
// skipped rather than queued.
func (s *Service) Run(ctx context.Context, runOnStart bool) error {
	cronLog := cron.PrintfLogger(slog.NewLogLogger(s.log.Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	job := cron.FuncJob(func() {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("batch run failed", "error", err)
		}
	})
	sched, err := cron.ParseStandard(s.cfg.Schedule)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.cfg.Schedule, err)
	}
	id := c.Schedule(sched, job)

	c.Start()
	s.log.Info("scheduler started",
		"schedule", s.cfg.Schedule,
		"next_run", sched.Next(time.Now()),
		"horizon", s.cfg.Horizon,
		"workers", s.cfg.Workers,
	)

	if runOnStart {
		// Through the wrapped entry so it counts against SkipIfStillRunning.
		go c.Entry(id).WrappedJob.Run()
	}

	<-ctx.Done()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		s.log.Warn("scheduler stop timed out waiting for a running batch")
	}
	s.log.Info("scheduler stopped")
	return nil
}
