package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/flowsync/internal/merge"
	"github.com/roach88/flowsync/internal/trigger"
	"github.com/roach88/flowsync/internal/workflow"
)

// Selector picks the records an Update applies to.
type Selector struct {
	id    string
	match func(workflow.Record) bool
}

// ByID selects the single record with id.
func ByID(id string) Selector {
	return Selector{id: id}
}

// Where selects every record for which match returns true.
func Where(match func(workflow.Record) bool) Selector {
	return Selector{match: match}
}

// Update patches every selected record, stamps updatedAt, refreshes the
// fingerprint and persists once. A deep patch merges objects recursively;
// a shallow one overwrites top-level fields.
//
// When the patch flips isDisabled, the matching trigger transition is
// dispatched after the records are stored. Hook failures are returned
// alongside the updated records; they never undo the update.
//
// ByID on an unknown id returns ErrNotFound. Where with no matches is a
// no-op.
func (l *Library) Update(ctx context.Context, sel Selector, patch map[string]any, deep bool) ([]workflow.Record, error) {
	l.mu.Lock()
	var ids []string
	switch {
	case sel.match != nil:
		for _, id := range l.sortedIDsLocked() {
			if sel.match(l.records[id].Clone()) {
				ids = append(ids, id)
			}
		}
	default:
		if _, ok := l.records[sel.id]; !ok {
			l.mu.Unlock()
			return nil, fmt.Errorf("update %s: %w", sel.id, ErrNotFound)
		}
		ids = []string{sel.id}
	}

	var (
		updated     []workflow.Record
		transitions []trigger.Transition
	)
	for _, id := range ids {
		prev := l.records[id]
		next, err := merge.Patch(prev, patch, deep)
		if err != nil {
			l.mu.Unlock()
			return nil, fmt.Errorf("update %s: %w", id, err)
		}
		stored, err := l.upsertLocked(id, next)
		if err != nil {
			l.mu.Unlock()
			return nil, fmt.Errorf("update %s: %w", id, err)
		}
		updated = append(updated, stored)
		if t, ok := trigger.Diff(prev, stored); ok {
			transitions = append(transitions, t)
		}
	}
	l.mu.Unlock()

	if len(updated) == 0 {
		return nil, nil
	}
	return updated, l.commit(ctx, transitions)
}

// InsertOptions configures InsertOrUpdate.
type InsertOptions struct {
	// CheckUpdateDate applies the recency gate to existing records.
	CheckUpdateDate bool

	// DuplicateID inserts every item as a new record with a fresh id.
	DuplicateID bool
}

// InsertOrUpdate imports items. Items without a local record are created
// with defaults filled in. Existing records go through the same decision
// as a sync pass: unchanged content is skipped, the recency gate applies
// when requested, and admitted content is merged with merge.Apply.
//
// Returns the records that were written, sorted by id.
func (l *Library) InsertOrUpdate(ctx context.Context, items []workflow.Document, opts InsertOptions) ([]workflow.Record, error) {
	var (
		written     []workflow.Record
		transitions []trigger.Transition
	)

	applyOpts := merge.ApplyOptions{
		DuplicateID: opts.DuplicateID,
		Version:     l.version,
		IDs:         l.ids,
		Clock:       l.clock,
	}
	decideOpts := merge.Options{CheckUpdateDate: opts.CheckUpdateDate}

	l.mu.Lock()
	for i, item := range items {
		content, err := merge.NewContent(item)
		if err != nil {
			l.mu.Unlock()
			return nil, fmt.Errorf("insert item %d: %w", i, err)
		}

		var local *workflow.Record
		if rec, ok := l.records[content.Record.ID]; ok && content.Record.ID != "" && !opts.DuplicateID {
			c := rec.Clone()
			local = &c
		}

		decision := merge.Decide(local, merge.Summary{ID: content.Record.ID}, content, decideOpts)
		if !decision.Mutates() {
			l.logger.Debug("import skipped unchanged workflow", "workflow_id", content.Record.ID)
			continue
		}

		rec, err := merge.Apply(decision, local, content, applyOpts)
		if err != nil {
			l.mu.Unlock()
			return nil, fmt.Errorf("insert item %d: %w", i, err)
		}
		stored, err := l.upsertLocked(rec.ID, rec)
		if err != nil {
			l.mu.Unlock()
			return nil, fmt.Errorf("insert item %d: %w", i, err)
		}
		written = append(written, stored)
		if local != nil {
			if t, ok := trigger.Diff(*local, stored); ok {
				transitions = append(transitions, t)
			}
		}
		l.logger.Debug("imported workflow",
			"workflow_id", stored.ID,
			"decision", decision.String())
	}
	l.mu.Unlock()

	sort.Slice(written, func(i, j int) bool { return written[i].ID < written[j].ID })
	if len(written) == 0 {
		return written, nil
	}
	return written, l.commit(ctx, transitions)
}

// Delete removes records and fans out cleanup:
//
//  1. Remote backups of hosted or backed-up ids are deleted first. A
//     failure returns ErrBackupDelete before anything local changes.
//  2. Records are removed from memory and persisted.
//  3. state:, draft: and draft-team: keys are removed.
//  4. The ids are pruned from backupIds and pinnedWorkflows.
//  5. Triggers of removed records are torn down.
//
// Unknown ids are no-ops. Returns the ids that existed.
func (l *Library) Delete(ctx context.Context, ids ...string) ([]string, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return []string{}, nil
	}

	book, err := l.loadBookkeeping(ctx)
	if err != nil {
		return nil, fmt.Errorf("delete: %w", err)
	}

	for _, id := range ids {
		if !book.remote(id) {
			continue
		}
		if l.backups == nil {
			l.logger.Warn("no backup deleter configured, keeping remote copy", "workflow_id", id)
			continue
		}
		if err := l.backups.DeleteBackup(ctx, id); err != nil {
			return nil, fmt.Errorf("delete %s: %w: %w", id, ErrBackupDelete, err)
		}
	}

	removed := l.Remove(ids...)

	var ephemeral []string
	for _, id := range ids {
		ephemeral = append(ephemeral, EphemeralKeys(id)...)
	}

	var errs []error
	if err := l.kv.Remove(ctx, ephemeral); err != nil {
		errs = append(errs, fmt.Errorf("delete ephemeral keys: %w: %w", ErrPersistence, err))
	}
	if err := l.Persist(ctx); err != nil {
		errs = append(errs, err)
	}
	if updates := book.prune(ids); len(updates) > 0 {
		if err := l.kv.Set(ctx, updates); err != nil {
			errs = append(errs, fmt.Errorf("prune bookkeeping: %w: %w", ErrPersistence, err))
		}
	}

	teardowns := make([]trigger.Transition, len(removed))
	for i, id := range removed {
		teardowns[i] = trigger.Teardown(id)
	}
	errs = append(errs, l.dispatcher.Dispatch(ctx, teardowns)...)

	l.logger.Info("deleted workflows", "requested", len(ids), "removed", len(removed))
	return removed, errors.Join(errs...)
}

// commit persists and then dispatches trigger transitions. Hooks run even
// when the flush fails: memory is authoritative and triggers follow it.
func (l *Library) commit(ctx context.Context, transitions []trigger.Transition) error {
	var errs []error
	if err := l.Persist(ctx); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, l.dispatcher.Dispatch(ctx, transitions)...)
	return errors.Join(errs...)
}

// bookkeeping holds the remote-sharing and pin indices that reference
// workflow ids.
type bookkeeping struct {
	hosted map[string]json.RawMessage
	backup []string
	pinned []string
}

func (l *Library) loadBookkeeping(ctx context.Context) (bookkeeping, error) {
	values, err := l.kv.Get(ctx, []string{KeyHostedWorkflows, KeyBackupIDs, KeyPinnedWorkflows})
	if err != nil {
		return bookkeeping{}, fmt.Errorf("read bookkeeping: %w", err)
	}

	var b bookkeeping
	if err := decodeOptional(values, KeyHostedWorkflows, &b.hosted); err != nil {
		return bookkeeping{}, err
	}
	if err := decodeOptional(values, KeyBackupIDs, &b.backup); err != nil {
		return bookkeeping{}, err
	}
	if err := decodeOptional(values, KeyPinnedWorkflows, &b.pinned); err != nil {
		return bookkeeping{}, err
	}
	return b, nil
}

func (b bookkeeping) remote(id string) bool {
	if _, ok := b.hosted[id]; ok {
		return true
	}
	return indexOf(b.backup, id) >= 0
}

// prune returns the bookkeeping keys that change when ids are removed.
func (b bookkeeping) prune(ids []string) map[string]any {
	updates := make(map[string]any)
	if next, changed := without(b.backup, ids); changed {
		updates[KeyBackupIDs] = next
	}
	if next, changed := without(b.pinned, ids); changed {
		updates[KeyPinnedWorkflows] = next
	}
	return updates
}

func decodeOptional(values map[string]json.RawMessage, key string, v any) error {
	raw, ok := values[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func without(list, ids []string) ([]string, bool) {
	out := make([]string, 0, len(list))
	changed := false
	for _, v := range list {
		if indexOf(ids, v) >= 0 {
			changed = true
			continue
		}
		out = append(out, v)
	}
	return out, changed
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
