package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/metrics"
	"NewsScanner/internal/ports"
)

// PollState is the state of the poll scheduler.
type PollState int32

const (
	StateIdle PollState = iota
	StatePolling
)

func (s PollState) String() string {
	if s == StatePolling {
		return "polling"
	}
	return "idle"
}

// SourceLister yields the sources that take part in a poll cycle and
// looks up single sources by name.
type SourceLister interface {
	Active() []ports.Source
	Resolve(name string) (ports.Source, error)
}

// PollerOptions tunes cycle execution.
type PollerOptions struct {
	MaxConcurrentSources int
	SourceTimeout        time.Duration
	Logger               *slog.Logger
}

// Poller runs the pipeline over all active sources on every tick.
// Overlapping ticks are skipped, never queued.
type Poller struct {
	driver   ports.Scheduler
	sources  SourceLister
	pipeline *Pipeline
	limit    int
	timeout  time.Duration
	logger   *slog.Logger

	state   atomic.Int32
	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// SourceOutcome is the result of one source within a cycle.
type SourceOutcome struct {
	Report SourceReport
	Err    error
}

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	ID       string
	Trigger  time.Time
	Duration time.Duration
	Sources  []SourceOutcome
}

// NewPoller returns a scheduler use case bound to a tick driver.
func NewPoller(driver ports.Scheduler, sources SourceLister, pipeline *Pipeline, opts PollerOptions) *Poller {
	if opts.MaxConcurrentSources <= 0 {
		opts.MaxConcurrentSources = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Poller{
		driver:   driver,
		sources:  sources,
		pipeline: pipeline,
		limit:    opts.MaxConcurrentSources,
		timeout:  opts.SourceTimeout,
		logger:   opts.Logger,
	}
}

// State reports whether a cycle is currently running.
func (p *Poller) State() PollState {
	return PollState(p.state.Load())
}

// Start registers the tick handler with the driver.
func (p *Poller) Start(ctx context.Context) error {
	if p.driver == nil {
		return nil
	}
	return p.driver.Start(ctx, func(trigger time.Time) {
		p.tick(ctx, trigger)
	})
}

// Stop halts ticking and waits for an in-flight cycle until ctx expires.
// No cycle starts afterwards.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	done := p.done
	p.mu.Unlock()

	var stopErr error
	if p.driver != nil {
		stopErr = p.driver.Stop(ctx)
	}

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("wait for poll cycle: %w", ctx.Err())
		}
	}
	return stopErr
}

// RunNow runs a cycle immediately. It returns domain.ErrCycleInProgress
// when another cycle is running.
func (p *Poller) RunNow(ctx context.Context) (CycleReport, error) {
	return p.RunCycle(ctx, time.Now())
}

// RunCycle runs every active source once, concurrently, each with its own
// timeout. Source failures are contained in the report.
func (p *Poller) RunCycle(ctx context.Context, trigger time.Time) (CycleReport, error) {
	if err := p.begin(); err != nil {
		return CycleReport{}, err
	}
	defer p.end()

	report := CycleReport{ID: uuid.NewString(), Trigger: trigger}
	logger := p.logger.With("cycle_id", report.ID)
	started := time.Now()

	sources := p.sources.Active()
	report.Sources = make([]SourceOutcome, len(sources))
	logger.Info("poll cycle started", "count", len(sources))

	// In-flight cycles finish even when the caller goes away.
	base := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(p.limit)
	for i, src := range sources {
		g.Go(func() error {
			sctx, cancel := p.sourceContext(base)
			defer cancel()
			res, err := p.pipeline.IngestSource(sctx, src)
			report.Sources[i] = SourceOutcome{Report: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(started)
	metrics.ObserveCycle(report.Duration.Seconds())

	failed := 0
	for _, o := range report.Sources {
		if o.Err != nil {
			failed++
		}
	}
	logger.Info("poll cycle finished",
		"count", len(sources),
		"failed_sources", failed,
		"duration", report.Duration,
	)
	return report, nil
}

// RunSource ingests one named source, enabled or not. It shares the
// cycle guard, so it fails with domain.ErrCycleInProgress while polling.
func (p *Poller) RunSource(ctx context.Context, name string) (SourceOutcome, error) {
	src, err := p.sources.Resolve(name)
	if err != nil {
		return SourceOutcome{}, err
	}
	if err := p.begin(); err != nil {
		return SourceOutcome{}, err
	}
	defer p.end()

	sctx, cancel := p.sourceContext(context.WithoutCancel(ctx))
	defer cancel()
	report, err := p.pipeline.IngestSource(sctx, src)
	return SourceOutcome{Report: report, Err: err}, nil
}

func (p *Poller) tick(ctx context.Context, trigger time.Time) {
	_, err := p.RunCycle(ctx, trigger)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrCycleInProgress):
		metrics.SkippedTicks.Inc()
		p.logger.Info("tick skipped, poll cycle still running", "trigger", trigger)
	case errors.Is(err, domain.ErrSchedulerStopped):
		p.logger.Debug("tick ignored after stop", "trigger", trigger)
	default:
		p.logger.Error("poll cycle failed", "error", err)
	}
}

func (p *Poller) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return domain.ErrSchedulerStopped
	}
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StatePolling)) {
		return domain.ErrCycleInProgress
	}
	p.done = make(chan struct{})
	metrics.Polling.Set(1)
	return nil
}

func (p *Poller) end() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Store(int32(StateIdle))
	close(p.done)
	p.done = nil
	metrics.Polling.Set(0)
}

func (p *Poller) sourceContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}
