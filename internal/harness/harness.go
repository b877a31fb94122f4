package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"

	"github.com/roach88/flowsync/internal/catalog"
	"github.com/roach88/flowsync/internal/merge"
	"github.com/roach88/flowsync/internal/reconcile"
	"github.com/roach88/flowsync/internal/records"
	"github.com/roach88/flowsync/internal/store"
	"github.com/roach88/flowsync/internal/testutil"
	"github.com/roach88/flowsync/internal/workflow"
)

// DefaultClock is the start time of scenarios that set none.
const DefaultClock = 1000

// errListing is served by the fake catalog for fail_listing passes.
var errListing = errors.New("listing unavailable")

// Harness is the scenario execution engine.
type Harness struct {
	store      *store.Store
	lib        *records.Library
	reconciler *reconcile.Reconciler
	catalog    *testutil.FakeCatalog
	hook       *testutil.RecordingHook
	clock      *testutil.ManualClock
	logger     *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. The
// returned error is non-nil only when the scenario could not be executed;
// failed expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	start := scenario.Clock
	if start == 0 {
		start = DefaultClock
	}

	h := &Harness{
		store:   st,
		catalog: testutil.NewFakeCatalog(),
		hook:    testutil.NewRecordingHook(),
		clock:   testutil.NewManualClock(start, 0),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	ids := testutil.NewSequenceGenerator("gen")

	h.lib = records.New(st,
		records.WithClock(h.clock),
		records.WithIDGenerator(ids),
		records.WithSeed([]workflow.Document{}),
		records.WithTriggerHook(h.hook),
		records.WithLogger(h.logger),
	)

	ctx := context.Background()
	if _, err := h.lib.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	if err := h.seedLocal(ctx, scenario.Local); err != nil {
		return nil, fmt.Errorf("failed to seed local records: %w", err)
	}

	validator, err := workflow.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to build validator: %w", err)
	}
	h.reconciler = reconcile.New(h.catalog, h.lib,
		reconcile.WithCheckUpdateDate(scenario.CheckUpdateDate),
		reconcile.WithClock(h.clock),
		reconcile.WithIDGenerator(ids),
		reconcile.WithValidator(validator),
		reconcile.WithTriggerHook(h.hook),
		reconcile.WithLogger(h.logger),
	)

	result := NewResult()
	listed := make(map[string]bool)
	for i, pass := range scenario.Passes {
		if err := h.runPass(ctx, i, pass, result); err != nil {
			return nil, fmt.Errorf("pass %d: %w", i, err)
		}
		for _, e := range pass.Listing {
			listed[e.ID] = true
		}
	}

	if err := h.verifyPersisted(ctx); err != nil {
		result.AddError(err.Error())
	}

	result.Records = h.lib.List()
	result.Registered = h.hook.Registered()
	result.Cleaned = h.hook.Cleaned()
	for id := range listed {
		result.Fetches[id] = h.catalog.Fetches(id)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// seedLocal stores the scenario's initial records and flushes them.
func (h *Harness) seedLocal(ctx context.Context, local []LocalRecord) error {
	for i, lr := range local {
		doc, err := toDocument(lr.Workflow)
		if err != nil {
			return fmt.Errorf("local[%d]: %w", i, err)
		}
		doc["id"] = lr.ID

		rec, err := doc.Record()
		if err != nil {
			return fmt.Errorf("local[%d]: %w", i, err)
		}
		if lr.Synced {
			if err := rec.Refresh(); err != nil {
				return fmt.Errorf("local[%d]: %w", i, err)
			}
			rec.SyncedHash = rec.Fingerprint
		}
		if _, err := h.lib.Upsert(lr.ID, rec); err != nil {
			return fmt.Errorf("local[%d]: %w", i, err)
		}
	}
	if len(local) == 0 {
		return nil
	}
	return h.lib.Persist(ctx)
}

// runPass applies edits, configures the catalog, runs one pass and checks
// its expectation.
func (h *Harness) runPass(ctx context.Context, index int, pass PassStep, result *Result) error {
	if pass.Clock != 0 {
		h.clock.Set(pass.Clock)
	}

	for j, edit := range pass.Edits {
		if _, err := h.lib.Update(ctx, records.ByID(edit.ID), edit.Patch, edit.Deep); err != nil {
			return fmt.Errorf("edit %d: %w", j, err)
		}
	}

	for id, content := range pass.Content {
		h.catalog.SetContent(id, content)
	}
	h.catalog.FailFetch = make(map[string]error, len(pass.FailFetch))
	for _, id := range pass.FailFetch {
		h.catalog.FailFetch[id] = fmt.Errorf("fetch %s: unavailable", id)
	}
	h.catalog.FailList = nil
	if pass.FailListing {
		h.catalog.FailList = errListing
	}

	listing, err := h.resolveListing(pass)
	if err != nil {
		return err
	}
	h.catalog.SetListing(listing...)

	var outcome PassOutcome
	report, err := h.reconciler.RunPass(ctx)
	if err != nil {
		var se *reconcile.SyncError
		if !errors.As(err, &se) {
			return fmt.Errorf("run pass: %w", err)
		}
		outcome.ErrorCode = string(se.Code)
	} else {
		outcome.Report = report
	}
	result.Passes = append(result.Passes, outcome)

	h.logger.Info("scenario pass completed",
		"pass", index,
		"inserted", len(report.Inserted),
		"updated", len(report.Updated),
		"error", outcome.ErrorCode,
	)

	if pass.Expect != nil {
		for _, msg := range checkPass(index, pass.Expect, outcome) {
			result.AddError(msg)
		}
	}
	return nil
}

// resolveListing builds catalog entries, replacing fingerprint
// placeholders.
func (h *Harness) resolveListing(pass PassStep) ([]catalog.Entry, error) {
	out := make([]catalog.Entry, 0, len(pass.Listing))
	for _, e := range pass.Listing {
		fp := e.Fingerprint
		switch fp {
		case FingerprintLocal:
			fp = ""
			if rec, ok := h.lib.Get(e.ID); ok {
				fp = rec.Fingerprint
			}
		case FingerprintContent:
			data, err := json.Marshal(pass.Content[e.ID])
			if err != nil {
				return nil, fmt.Errorf("listing %s: %w", e.ID, err)
			}
			c, err := merge.ParseContent(data)
			if err != nil {
				return nil, fmt.Errorf("listing %s: %w", e.ID, err)
			}
			fp = c.Fingerprint()
		}
		out = append(out, catalog.Entry{
			ID:          e.ID,
			Location:    "/workflows/" + e.ID + ".json",
			Fingerprint: fp,
			UpdatedAt:   e.UpdatedAt,
		})
	}
	return out, nil
}

// verifyPersisted reloads the store and checks it holds what memory holds.
func (h *Harness) verifyPersisted(ctx context.Context) error {
	reloaded := records.New(h.store,
		records.WithSeed([]workflow.Document{}),
		records.WithLogger(h.logger),
	)
	stored, err := reloaded.Load(ctx)
	if err != nil {
		return fmt.Errorf("persisted state: %w", err)
	}

	memory := h.lib.List()
	if len(stored) != len(memory) {
		return fmt.Errorf("persisted state: %d records stored, %d in memory", len(stored), len(memory))
	}
	for _, rec := range memory {
		got, ok := stored[rec.ID]
		if !ok {
			return fmt.Errorf("persisted state: record %s missing", rec.ID)
		}
		if got.Fingerprint != rec.Fingerprint || got.UpdatedAt != rec.UpdatedAt {
			return fmt.Errorf("persisted state: record %s differs from memory", rec.ID)
		}
	}
	return nil
}

// checkPass compares an outcome with its expectation.
func checkPass(index int, want *PassExpect, got PassOutcome) []string {
	var errs []string
	if want.Error != got.ErrorCode {
		errs = append(errs, fmt.Sprintf("pass %d: error = %q, want %q", index, got.ErrorCode, want.Error))
	}
	if got.ErrorCode != "" {
		return errs
	}

	checkList := func(field string, want, got []string) {
		if want == nil {
			return
		}
		w := slices.Clone(want)
		sort.Strings(w)
		if !slices.Equal(w, got) {
			errs = append(errs, fmt.Sprintf("pass %d: %s = %v, want %v", index, field, got, w))
		}
	}
	checkList("inserted", want.Inserted, got.Report.Inserted)
	checkList("updated", want.Updated, got.Report.Updated)
	checkList("skipped", want.Skipped, got.Report.Skipped)

	if want.Failed != nil {
		failed := make(map[string]string, len(got.Report.Failed))
		for _, f := range got.Report.Failed {
			failed[f.WorkflowID] = string(f.Code)
		}
		if !mapsEqual(failed, want.Failed) {
			errs = append(errs, fmt.Sprintf("pass %d: failed = %v, want %v", index, failed, want.Failed))
		}
	}

	if want.Fetches != nil && *want.Fetches != got.Report.Fetches {
		errs = append(errs, fmt.Sprintf("pass %d: fetches = %d, want %d", index, got.Report.Fetches, *want.Fetches))
	}
	return errs
}

func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// toDocument converts YAML-decoded data to a workflow document by way of
// JSON, so numbers and nesting match what a remote would send.
func toDocument(data map[string]any) (workflow.Document, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return workflow.ParseDocument(raw)
}
