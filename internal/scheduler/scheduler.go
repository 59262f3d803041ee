package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// MinInterval is the shortest refresh period the host allows.
const MinInterval = 15 * time.Minute

const refreshTag = "refresh"

// Refresher is the work run on every tick.
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

// Scheduler periodically refreshes every widget instance.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration

	// base is cancelled on shutdown and aborts the cycle in flight.
	base context.Context
	log  *zap.Logger
}

// New creates a Scheduler. Intervals shorter than MinInterval are raised to it.
func New(base context.Context, refresher Refresher, interval, timeout time.Duration, log *zap.Logger) *Scheduler {
	if interval < MinInterval {
		interval = MinInterval
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := gocron.NewScheduler(time.UTC)
	// A slow cycle is never overlapped by the next tick or a manual run.
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		refresher: refresher,
		interval:  interval,
		timeout:   timeout,
		base:      base,
		log:       log.Named("scheduler"),
	}
}

// Start schedules the refresh job, runs it once right away and returns.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).Tag(refreshTag).Do(s.runCycle)
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.log.Info("scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// RunNow triggers an out-of-band cycle.
func (s *Scheduler) RunNow() error {
	return s.scheduler.RunByTag(refreshTag)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) runCycle() {
	if s.base.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.base, s.timeout)
	defer cancel()

	start := time.Now()
	s.log.Info("running widget refresh")
	err := s.refresher.RefreshAll(ctx)
	switch {
	case err == nil:
		s.log.Info("widget refresh completed", zap.Duration("took", time.Since(start)))
	case errors.Is(err, context.Canceled):
		s.log.Info("widget refresh cancelled")
	default:
		s.log.Error("widget refresh failed", zap.Duration("took", time.Since(start)), zap.Error(err))
	}
}
