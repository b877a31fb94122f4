package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/flowsync/internal/catalog"
	"github.com/roach88/flowsync/internal/merge"
	"github.com/roach88/flowsync/internal/records"
	"github.com/roach88/flowsync/internal/trigger"
	"github.com/roach88/flowsync/internal/workflow"
)

// DefaultConcurrency bounds parallel content fetches.
const DefaultConcurrency = 4

// Source is the remote catalog as seen by a pass. Implemented by
// catalog.Client.
type Source interface {
	List(ctx context.Context) (catalog.Listing, error)
	Fetch(ctx context.Context, entry catalog.Entry) ([]byte, error)
}

// Validator checks raw content before it is merged. Implemented by
// workflow.Validator.
type Validator interface {
	Validate(data []byte) error
}

// Reconciler runs sync passes.
//
// Thread-safety: RunPass is safe to call from any goroutine; concurrent
// calls while a pass runs return ErrPassInProgress.
type Reconciler struct {
	source      Source
	lib         *records.Library
	validator   Validator
	dispatcher  *trigger.Dispatcher
	hook        trigger.Hook
	decideOpts  merge.Options
	applyOpts   merge.ApplyOptions
	concurrency int
	logger      *slog.Logger

	running atomic.Bool
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithCheckUpdateDate enables the recency gate.
func WithCheckUpdateDate(enabled bool) Option {
	return func(r *Reconciler) {
		r.decideOpts.CheckUpdateDate = enabled
	}
}

// WithConcurrency bounds parallel fetches. Values below 1 mean
// DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(r *Reconciler) {
		r.concurrency = n
	}
}

// WithValidator validates fetched content. Default: none.
func WithValidator(v Validator) Option {
	return func(r *Reconciler) {
		r.validator = v
	}
}

// WithTriggerHook sets the hook for enable/disable transitions caused by
// updates. Default: none.
func WithTriggerHook(h trigger.Hook) Option {
	return func(r *Reconciler) {
		r.hook = h
	}
}

// WithClock sets the clock used to stamp inserted records.
func WithClock(c workflow.Clock) Option {
	return func(r *Reconciler) {
		r.applyOpts.Clock = c
	}
}

// WithIDGenerator sets the generator for ids of inserted records that
// arrive without one.
func WithIDGenerator(g workflow.IDGenerator) Option {
	return func(r *Reconciler) {
		r.applyOpts.IDs = g
	}
}

// WithVersion stamps inserted records with the host application version.
func WithVersion(v string) Option {
	return func(r *Reconciler) {
		r.applyOpts.Version = v
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// New creates a reconciler that syncs lib against source. lib must be
// loaded.
func New(source Source, lib *records.Library, opts ...Option) *Reconciler {
	r := &Reconciler{
		source:      source,
		lib:         lib,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	// Synced records mirror the remote graph, empty or not.
	r.applyOpts.KeepNodes = true
	if r.concurrency < 1 {
		r.concurrency = DefaultConcurrency
	}
	r.dispatcher = trigger.NewDispatcher(r.hook, trigger.WithLogger(r.logger))
	return r
}

// plan is the outcome of stage 2 for one entry.
type plan struct {
	entry   catalog.Entry
	skip    bool
	content *merge.Content
	err     *SyncError
}

// RunPass runs one sync pass.
//
// The returned error is non-nil only when the pass did not run:
// ErrPassInProgress, or a LISTING_FETCH_FAILED SyncError. Every other
// failure is recorded in the report and the pass carries on.
func (r *Reconciler) RunPass(ctx context.Context) (Report, error) {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Debug("sync pass skipped: another pass is running")
		return Report{}, ErrPassInProgress
	}
	defer r.running.Store(false)

	listing, err := r.source.List(ctx)
	if err != nil {
		r.logger.Warn("sync pass aborted: listing failed", "error", err)
		return Report{}, &SyncError{Code: ErrCodeListingFetchFailed, Err: err}
	}

	report := newReport()
	plans, fetches := r.planAll(ctx, listing)
	report.Fetches = fetches

	var transitions []trigger.Transition
	for _, p := range plans {
		switch {
		case p.err != nil:
			report.Failed = append(report.Failed, p.err)
		case p.skip:
			report.Skipped = append(report.Skipped, p.entry.ID)
		default:
			outcome, t, err := r.apply(p)
			if err != nil {
				report.Failed = append(report.Failed, err)
				continue
			}
			switch outcome {
			case merge.Insert:
				report.Inserted = append(report.Inserted, p.entry.ID)
			case merge.Update, merge.UpdateWithGraphMerge:
				report.Updated = append(report.Updated, p.entry.ID)
			default:
				report.Skipped = append(report.Skipped, p.entry.ID)
			}
			if t != nil {
				transitions = append(transitions, *t)
			}
		}
	}

	if report.Changed() {
		if err := r.lib.Persist(ctx); err != nil {
			report.Failed = append(report.Failed, &SyncError{Code: ErrCodePersistenceFailed, Err: err})
		}
	}

	for _, err := range r.dispatcher.Dispatch(ctx, transitions) {
		var he *trigger.HookError
		id := ""
		if errors.As(err, &he) {
			id = he.WorkflowID
		}
		report.HookFailures = append(report.HookFailures, &SyncError{
			Code:       ErrCodeTriggerHookFailed,
			WorkflowID: id,
			Err:        err,
		})
	}

	report.sort()
	r.logger.Info("sync pass complete",
		"entries", len(listing),
		"inserted", len(report.Inserted),
		"updated", len(report.Updated),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed),
		"fetches", report.Fetches)
	return report, nil
}

// planAll decides and fetches every entry with bounded parallelism.
// Results keep listing order.
func (r *Reconciler) planAll(ctx context.Context, listing catalog.Listing) ([]plan, int) {
	plans := make([]plan, len(listing))
	var fetches atomic.Int32

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, entry := range listing {
		g.Go(func() error {
			plans[i] = r.planOne(ctx, entry, &fetches)
			return nil
		})
	}
	_ = g.Wait()

	return plans, int(fetches.Load())
}

func (r *Reconciler) planOne(ctx context.Context, entry catalog.Entry, fetches *atomic.Int32) plan {
	p := plan{entry: entry}

	var local *workflow.Record
	if rec, ok := r.lib.Get(entry.ID); ok {
		local = &rec
	}

	if merge.Decide(local, summaryOf(entry), nil, r.decideOpts) == merge.Skip {
		r.logger.Debug("workflow unchanged, fetch skipped", "workflow_id", entry.ID)
		p.skip = true
		return p
	}

	fetches.Add(1)
	raw, err := r.source.Fetch(ctx, entry)
	if err != nil {
		r.logger.Warn("content fetch failed", "workflow_id", entry.ID, "error", err)
		p.err = &SyncError{Code: ErrCodeContentFetchFailed, WorkflowID: entry.ID, Err: err}
		return p
	}

	content, err := r.parse(raw, entry.ID)
	if err != nil {
		r.logger.Warn("content rejected", "workflow_id", entry.ID, "error", err)
		p.err = &SyncError{Code: ErrCodeContentInvalid, WorkflowID: entry.ID, Err: err}
		return p
	}
	p.content = content
	return p
}

// parse validates raw content and binds it to the listing id. The listing
// id is authoritative over any id inside the content.
func (r *Reconciler) parse(raw []byte, id string) (*merge.Content, error) {
	if r.validator != nil {
		if err := r.validator.Validate(raw); err != nil {
			return nil, err
		}
	}
	doc, err := workflow.ParseDocument(raw)
	if err != nil {
		return nil, err
	}
	doc["id"] = id
	return merge.NewContent(doc)
}

// apply re-decides against the current record and writes the result.
func (r *Reconciler) apply(p plan) (merge.Decision, *trigger.Transition, *SyncError) {
	summary := summaryOf(p.entry)
	decision := merge.Skip

	change, err := r.lib.Apply(p.entry.ID, func(current *workflow.Record) (*workflow.Record, error) {
		decision = merge.Decide(current, summary, p.content, r.decideOpts)
		if !decision.Mutates() {
			return nil, nil
		}
		rec, err := merge.Apply(decision, current, p.content, r.applyOpts)
		if err != nil {
			return nil, err
		}
		return &rec, nil
	})
	if err != nil {
		r.logger.Warn("merge failed", "workflow_id", p.entry.ID, "decision", decision.String(), "error", err)
		return decision, nil, &SyncError{
			Code:       ErrCodeContentInvalid,
			WorkflowID: p.entry.ID,
			Err:        fmt.Errorf("%s: %w", decision, err),
		}
	}
	if !change.Changed {
		r.logger.Debug("workflow content unchanged", "workflow_id", p.entry.ID)
		return merge.Skip, nil, nil
	}

	r.logger.Debug("workflow synced",
		"workflow_id", p.entry.ID,
		"decision", decision.String(),
		"fingerprint", change.Next.Fingerprint)

	if change.Prev == nil {
		return decision, nil, nil
	}
	if t, ok := trigger.Diff(*change.Prev, change.Next); ok {
		return decision, &t, nil
	}
	return decision, nil, nil
}

func summaryOf(e catalog.Entry) merge.Summary {
	return merge.Summary{ID: e.ID, Fingerprint: e.Fingerprint, UpdatedAt: e.UpdatedAt}
}
