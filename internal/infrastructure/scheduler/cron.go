package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"NewsScanner/internal/ports"
	"NewsScanner/pkg/logger"
)

// CronScheduler drives poll ticks from a cron schedule. The first tick
// fires immediately on Start.
type CronScheduler struct {
	spec     string
	location *time.Location
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	initial sync.WaitGroup
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler for a cron expression or an
// "@every <duration>" descriptor.
func NewCronScheduler(spec string, location *time.Location, log *slog.Logger) (*CronScheduler, error) {
	if location == nil {
		location = time.UTC
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return &CronScheduler{spec: spec, location: location, logger: log}, nil
}

// Start runs job once right away and then on every scheduled tick.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return errors.New("scheduler job is nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return errors.New("scheduler already started")
	}

	cl := logger.NewCron(c.logger)
	cr := cron.New(
		cron.WithLocation(c.location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	if _, err := cr.AddFunc(c.spec, func() { job(time.Now().In(c.location)) }); err != nil {
		return fmt.Errorf("register job: %w", err)
	}

	c.initial.Add(1)
	go func() {
		defer c.initial.Done()
		if ctx.Err() != nil {
			return
		}
		job(time.Now().In(c.location))
	}()

	cr.Start()
	c.cron = cr
	c.logger.Info("scheduler started", "spec", c.spec, "timezone", c.location.String())
	return nil
}

// Stop halts ticking and waits for running jobs until ctx expires.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	cr := c.cron
	c.cron = nil
	c.mu.Unlock()
	if cr == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		<-cr.Stop().Done()
		c.initial.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}
