package trigger

import (
	"context"
	"log/slog"
)

// Dispatcher runs transitions against a Hook.
//
// Thread-safety: safe for concurrent use if the Hook is.
type Dispatcher struct {
	hook   Hook
	logger *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// NewDispatcher creates a dispatcher. A nil hook makes every dispatch a
// no-op.
func NewDispatcher(hook Hook, opts ...Option) *Dispatcher {
	d := &Dispatcher{hook: hook, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch invokes the hook once per transition, in order. Every failure is
// logged and returned as a *HookError; a failure does not stop later
// transitions.
func (d *Dispatcher) Dispatch(ctx context.Context, transitions []Transition) []error {
	if d == nil || d.hook == nil {
		return nil
	}

	var errs []error
	for _, t := range transitions {
		var err error
		switch t.Kind {
		case Cleanup:
			err = d.hook.CleanupTriggers(ctx, t.WorkflowID)
		case Register:
			if t.Node == nil {
				d.logger.Debug("workflow enabled without trigger node",
					"workflow_id", t.WorkflowID)
				continue
			}
			err = d.hook.RegisterTrigger(ctx, t.WorkflowID, *t.Node)
		}

		if err != nil {
			d.logger.Warn("trigger hook failed",
				"workflow_id", t.WorkflowID,
				"kind", t.Kind.String(),
				"error", err)
			errs = append(errs, &HookError{WorkflowID: t.WorkflowID, Kind: t.Kind, Err: err})
			continue
		}
		d.logger.Debug("trigger hook dispatched",
			"workflow_id", t.WorkflowID,
			"kind", t.Kind.String())
	}
	return errs
}
