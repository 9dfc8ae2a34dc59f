package cachex

import (
	"context"
	"fmt"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/logx"
	"github.com/robfig/cron/v3"
)

// Sweeper is anything with an expiry pass.
type Sweeper interface {
	Sweep() int
}

// Janitor runs a Sweeper on a fixed interval until its context is cancelled.
type Janitor struct {
	name     string
	sweeper  Sweeper
	interval time.Duration
}

// NewJanitor creates a janitor. A non-positive interval uses DefaultSweepInterval.
func NewJanitor(name string, sweeper Sweeper, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Janitor{name: name, sweeper: sweeper, interval: interval}
}

// Start schedules the sweep and blocks until ctx is done. On return no sweep
// is running.
func (j *Janitor) Start(ctx context.Context) error {
	logger := logx.CronLogger()
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger)),
	)
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", j.interval), func() { j.RunOnce() }); err != nil {
		return fmt.Errorf("schedule %s sweep: %w", j.name, err)
	}

	logx.WithFields(logx.Fields{
		"janitor":  j.name,
		"interval": j.interval.String(),
	}).Info("janitor started")
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()

	logx.WithField("janitor", j.name).Info("janitor stopped")
	return nil
}

// RunOnce performs one sweep synchronously.
func (j *Janitor) RunOnce() int {
	removed := j.sweeper.Sweep()
	if removed > 0 {
		logx.WithFields(logx.Fields{
			"janitor": j.name,
			"removed": removed,
		}).Info("swept expired entries")
	}
	return removed
}
