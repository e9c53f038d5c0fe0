package usecase

import (
	"context"
	"time"

	"LegisImport/internal/ports"
)

// Scheduler wires the cron-like driver with recurring refresh imports.
type Scheduler struct {
	driver   ports.Scheduler
	runner   *Runner
	inputDir string
	opts     Options
}

// NewScheduler returns a helper to start/stop recurring imports.
func NewScheduler(driver ports.Scheduler, runner *Runner, inputDir string, opts Options) *Scheduler {
	return &Scheduler{driver: driver, runner: runner, inputDir: inputDir, opts: opts}
}

// Start registers the import job with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil {
		return nil
	}

	job := func(time.Time) {
		files, err := DiscoverFiles(s.inputDir)
		if err != nil {
			return
		}
		_, _ = s.runner.Run(ctx, files, s.opts)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
