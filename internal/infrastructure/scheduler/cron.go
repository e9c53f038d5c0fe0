package scheduler

import (
	"context"
	"time"

	"LegisImport/internal/ports"
)

// CronScheduler drives recurring refresh imports on a fixed interval; the
// cron expression is kept for a later real cron driver.
type CronScheduler struct {
	spec     string
	interval time.Duration
	stop     chan struct{}
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler; interval defaults to 24h.
func NewCronScheduler(spec string, interval time.Duration) *CronScheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &CronScheduler{spec: spec, interval: interval}
}

// Start begins ticking, running the job once immediately.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	if c.stop != nil {
		return nil
	}

	c.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		job(time.Now())
		for {
			select {
			case t := <-ticker.C:
				job(t)
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine.
func (c *CronScheduler) Stop(ctx context.Context) error {
	if c.stop == nil {
		return nil
	}
	close(c.stop)
	c.stop = nil
	return nil
}
