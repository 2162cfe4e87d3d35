// Package scheduler drives watch mode via a cron expression.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dzhafarfovss-code/economy-monitor/internal/ports"
)

// CronScheduler fires the job per the configured cron expression in the
// configured timezone.
type CronScheduler struct {
	spec string
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// New builds a scheduler for the expression and location.
func New(spec string, loc *time.Location) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{
		spec: spec,
		cron: cron.New(cron.WithLocation(loc)),
	}
}

// Start registers the job and begins scheduling. Jobs do not overlap from
// the scheduler's point of view only when the job itself returns before the
// next tick; the pipeline's run deadline keeps that true in practice.
func (c *CronScheduler) Start(job func(time.Time)) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}
	if _, err := c.cron.AddFunc(c.spec, func() { job(time.Now()) }); err != nil {
		return fmt.Errorf("bad cron expression %q: %w", c.spec, err)
	}
	c.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running job to finish.
func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}
