package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultInterval is the time between scheduled passes.
const DefaultInterval = 10 * time.Minute

// Reasons reported to the PassObserver. ReasonSignal is what the host
// process passes to Trigger when asked for an extra pass.
const (
	ReasonStartup  = "startup"
	ReasonInterval = "interval"
	ReasonSignal   = "signal"
)

// Runner runs one pass. Implemented by *Reconciler.
type Runner interface {
	RunPass(ctx context.Context) (Report, error)
}

// PassObserver is called after every pass the scheduler attempts.
type PassObserver func(reason string, report Report, err error)

// Scheduler runs passes at startup, on a fixed interval and on demand.
//
// Passes run one at a time on the goroutine that called Run. Interval
// ticks that fire while a pass runs are dropped, not queued. On-demand
// triggers coalesce: at most one is pending at any time.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	observer PassObserver
	logger   *slog.Logger
	pending  chan string
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval sets the time between passes. Default: DefaultInterval.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.interval = d
	}
}

// WithObserver registers a callback run after each pass.
func WithObserver(fn PassObserver) SchedulerOption {
	return func(s *Scheduler) {
		s.observer = fn
	}
}

// WithSchedulerLogger sets the logger. Default: slog.Default().
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// NewScheduler creates a scheduler for runner.
func NewScheduler(runner Runner, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		runner:   runner,
		interval: DefaultInterval,
		logger:   slog.Default(),
		pending:  make(chan string, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	return s
}

// Trigger requests an on-demand pass. It never blocks. Returns false when a
// request is already pending, in which case this one is folded into it.
//
// Safe to call from any goroutine, before or during Run.
func (s *Scheduler) Trigger(reason string) bool {
	select {
	case s.pending <- reason:
		return true
	default:
		s.logger.Debug("sync trigger coalesced", "reason", reason)
		return false
	}
}

// Run runs a startup pass, then passes on every tick and trigger until ctx
// is done. Returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("sync scheduler starting", "interval", s.interval.String())

	s.pass(ctx, ReasonStartup)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopping: context cancelled")
			return ctx.Err()

		case <-ticker.C:
			s.pass(ctx, ReasonInterval)

		case reason := <-s.pending:
			s.pass(ctx, reason)
		}

		// Ticks that fired during the pass are skipped.
		select {
		case <-ticker.C:
			s.logger.Debug("sync tick skipped: pass was running")
		default:
		}
	}
}

func (s *Scheduler) pass(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.runner.RunPass(ctx)
	switch {
	case errors.Is(err, ErrPassInProgress):
		s.logger.Debug("sync pass skipped", "reason", reason)
	case err != nil:
		s.logger.Warn("sync pass failed", "reason", reason, "error", err)
	default:
		s.logger.Debug("sync pass finished", "reason", reason, "changed", report.Changed())
	}
	if s.observer != nil {
		s.observer(reason, report, err)
	}
}
