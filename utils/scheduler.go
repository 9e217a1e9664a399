package utils

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Cleaner runs best-effort storage hygiene jobs on a fixed interval.
type Cleaner struct {
	scheduler *gocron.Scheduler
	logger    *zap.Logger
}

// NewCleaner creates a stopped cleaner running in UTC.
func NewCleaner(logger *zap.Logger) *Cleaner {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Cleaner{scheduler: s, logger: logger}
}

// Every registers job under name. The first run waits one full interval.
func (c *Cleaner) Every(name string, interval time.Duration, job func(ctx context.Context) error) error {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	_, err := c.scheduler.Every(interval).WaitForSchedule().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval/2)
		defer cancel()
		started := time.Now()
		if err := job(ctx); err != nil {
			c.logger.Warn("cleanup job failed", zap.String("job", name), zap.Error(err))
			return
		}
		c.logger.Debug("cleanup job done", zap.String("job", name), zap.Duration("took", time.Since(started)))
	})
	return err
}

// Start launches the scheduler without blocking.
func (c *Cleaner) Start() {
	c.scheduler.StartAsync()
}

// Stop terminates all scheduled jobs.
func (c *Cleaner) Stop() {
	c.scheduler.Stop()
}
