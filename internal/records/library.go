package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/flowsync/internal/store"
	"github.com/roach88/flowsync/internal/trigger"
	"github.com/roach88/flowsync/internal/workflow"
)

// BackupDeleter deletes the remote copy of a hosted or backed-up workflow.
// Implemented by catalog.Client.
type BackupDeleter interface {
	DeleteBackup(ctx context.Context, id string) error
}

// Library is the local record store.
//
// Thread-safety: all methods are safe for concurrent use. Mutations are
// serialized; reads return clones.
type Library struct {
	kv         store.KV
	clock      workflow.Clock
	ids        workflow.IDGenerator
	version    string
	logger     *slog.Logger
	hook       trigger.Hook
	dispatcher *trigger.Dispatcher
	backups    BackupDeleter
	seed       []workflow.Document

	// mu guards records and loaded.
	mu      sync.Mutex
	records map[string]workflow.Record
	loaded  bool

	// persistMu orders flushes so an older snapshot never lands after a
	// newer one.
	persistMu sync.Mutex
}

// Option configures a Library.
type Option func(*Library)

// WithClock sets the clock used for createdAt/updatedAt stamps.
// Default: workflow.SystemClock.
func WithClock(c workflow.Clock) Option {
	return func(l *Library) {
		l.clock = c
	}
}

// WithIDGenerator sets the generator for new workflow and node ids.
// Default: workflow.UUIDv7Generator.
func WithIDGenerator(g workflow.IDGenerator) Option {
	return func(l *Library) {
		l.ids = g
	}
}

// WithVersion stamps new records with the host application version.
func WithVersion(v string) Option {
	return func(l *Library) {
		l.version = v
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(lg *slog.Logger) Option {
	return func(l *Library) {
		l.logger = lg
	}
}

// WithTriggerHook sets the hook that receives enable/disable transitions
// and delete teardowns. Default: none.
func WithTriggerHook(h trigger.Hook) Option {
	return func(l *Library) {
		l.hook = h
	}
}

// WithBackupDeleter sets the remote backup deleter used by Delete.
// Without one, deleting a hosted or backed-up workflow skips the remote
// step.
func WithBackupDeleter(d BackupDeleter) Option {
	return func(l *Library) {
		l.backups = d
	}
}

// WithSeed replaces the bundled default workflows seeded on first run.
func WithSeed(docs []workflow.Document) Option {
	return func(l *Library) {
		l.seed = docs
	}
}

// New creates a library over kv. Call Load before use.
func New(kv store.KV, opts ...Option) *Library {
	l := &Library{
		kv:      kv,
		clock:   workflow.SystemClock{},
		ids:     workflow.UUIDv7Generator{},
		logger:  slog.Default(),
		records: make(map[string]workflow.Record),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.dispatcher = trigger.NewDispatcher(l.hook, trigger.WithLogger(l.logger))
	return l
}

// Load reads persisted records. On first run it seeds the bundled defaults
// and persists them immediately with the first-run flag cleared.
//
// Load is idempotent: once loaded, later calls return the in-memory state
// without reading storage again.
func (l *Library) Load(ctx context.Context) (map[string]workflow.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return l.snapshotLocked(), nil
	}

	values, err := l.kv.Get(ctx, []string{KeyWorkflows, KeyFirstTime})
	if err != nil {
		return nil, fmt.Errorf("load workflows: %w", err)
	}

	firstRun, err := isFirstRun(values)
	if err != nil {
		return nil, fmt.Errorf("load workflows: %w", err)
	}

	if firstRun {
		seeded, err := l.seedRecords()
		if err != nil {
			return nil, fmt.Errorf("load workflows: %w", err)
		}
		if err := l.kv.Set(ctx, map[string]any{
			KeyFirstTime: false,
			KeyWorkflows: seeded,
		}); err != nil {
			return nil, fmt.Errorf("load workflows: %w: %w", ErrPersistence, err)
		}
		l.records = seeded
		l.logger.Info("seeded default workflows", "count", len(seeded))
	} else {
		recs, err := decodeWorkflows(values[KeyWorkflows])
		if err != nil {
			return nil, fmt.Errorf("load workflows: %w", err)
		}
		l.records = recs
		l.logger.Debug("loaded workflows", "count", len(recs))
	}

	l.loaded = true
	return l.snapshotLocked(), nil
}

// isFirstRun reports whether defaults should be seeded: the flag is true,
// or nothing was ever persisted.
func isFirstRun(values map[string]json.RawMessage) (bool, error) {
	raw, ok := values[KeyFirstTime]
	if !ok {
		_, hasWorkflows := values[KeyWorkflows]
		return !hasWorkflows, nil
	}
	var flag *bool
	if err := json.Unmarshal(raw, &flag); err != nil {
		return false, fmt.Errorf("decode %s: %w", KeyFirstTime, err)
	}
	return flag != nil && *flag, nil
}

// decodeWorkflows accepts the persisted map as an object keyed by id or
// as an array of records.
func decodeWorkflows(raw json.RawMessage) (map[string]workflow.Record, error) {
	out := make(map[string]workflow.Record)
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}

	var docs map[string]workflow.Document
	if trimmed[0] == '[' {
		var list []workflow.Document
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode %s: %w", KeyWorkflows, err)
		}
		docs = make(map[string]workflow.Document, len(list))
		for i, d := range list {
			id, _ := d["id"].(string)
			if id == "" {
				return nil, fmt.Errorf("decode %s: entry %d has no id", KeyWorkflows, i)
			}
			docs[id] = d
		}
	} else if err := json.Unmarshal(trimmed, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyWorkflows, err)
	}

	for key, d := range docs {
		if d == nil {
			continue
		}
		rec, err := d.Record()
		if err != nil {
			return nil, fmt.Errorf("decode %s[%q]: %w", KeyWorkflows, key, err)
		}
		if rec.ID == "" {
			rec.ID = key
		}
		if err := rec.Refresh(); err != nil {
			return nil, fmt.Errorf("decode %s[%q]: %w", KeyWorkflows, key, err)
		}
		out[rec.ID] = rec
	}
	return out, nil
}

// Get returns a copy of the record with id.
func (l *Library) Get(id string) (workflow.Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok {
		return workflow.Record{}, false
	}
	return rec.Clone(), true
}

// List returns copies of every record, sorted by id.
func (l *Library) List() []workflow.Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]workflow.Record, 0, len(l.records))
	for _, id := range l.sortedIDsLocked() {
		out = append(out, l.records[id].Clone())
	}
	return out
}

// Len returns the number of records.
func (l *Library) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Upsert inserts or replaces the record with id. updatedAt is stamped and
// the fingerprint recomputed. Memory only; call Persist to flush.
func (l *Library) Upsert(id string, rec workflow.Record) (workflow.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.upsertLocked(id, rec)
}

// Change is the outcome of Apply.
type Change struct {
	// Prev is the record before the change, nil if it did not exist.
	Prev *workflow.Record

	// Next is the stored record. Zero when Changed is false.
	Next workflow.Record

	Changed bool
}

// Apply runs fn against the current record with id (nil if absent) and
// stores the record fn returns. fn returning nil leaves the store
// untouched. fn runs under the store lock and must not call back into the
// Library.
func (l *Library) Apply(id string, fn func(current *workflow.Record) (*workflow.Record, error)) (Change, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var prev *workflow.Record
	if rec, ok := l.records[id]; ok {
		c := rec.Clone()
		prev = &c
	}

	var arg *workflow.Record
	if prev != nil {
		c := prev.Clone()
		arg = &c
	}
	next, err := fn(arg)
	if err != nil {
		return Change{Prev: prev}, err
	}
	if next == nil {
		return Change{Prev: prev}, nil
	}

	stored, err := l.upsertLocked(id, *next)
	if err != nil {
		return Change{Prev: prev}, err
	}
	return Change{Prev: prev, Next: stored, Changed: true}, nil
}

// Remove deletes records from memory and returns the ids that existed.
// Unknown ids are ignored.
func (l *Library) Remove(ids ...string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.removeLocked(ids)
}

// Persist flushes the full record map under KeyWorkflows.
func (l *Library) Persist(ctx context.Context) error {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	l.mu.Lock()
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	if err := l.kv.Set(ctx, map[string]any{KeyWorkflows: snapshot}); err != nil {
		l.logger.Error("persist workflows failed", "count", len(snapshot), "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	l.logger.Debug("persisted workflows", "count", len(snapshot))
	return nil
}

func (l *Library) upsertLocked(id string, rec workflow.Record) (workflow.Record, error) {
	rec = rec.Clone()
	rec.ID = id

	now := l.clock.Now()
	if prev, ok := l.records[id]; ok {
		rec.CreatedAt = prev.CreatedAt
		if now < prev.UpdatedAt {
			now = prev.UpdatedAt
		}
	} else if rec.CreatedAt == 0 {
		rec.CreatedAt = now
	}
	if now < rec.CreatedAt {
		now = rec.CreatedAt
	}
	rec.UpdatedAt = now

	if err := rec.Refresh(); err != nil {
		return workflow.Record{}, fmt.Errorf("upsert %s: %w", id, err)
	}
	l.records[id] = rec
	return rec.Clone(), nil
}

func (l *Library) removeLocked(ids []string) []string {
	removed := []string{}
	for _, id := range ids {
		if _, ok := l.records[id]; ok {
			delete(l.records, id)
			removed = append(removed, id)
		}
	}
	return removed
}

func (l *Library) snapshotLocked() map[string]workflow.Record {
	out := make(map[string]workflow.Record, len(l.records))
	for id, rec := range l.records {
		out[id] = rec.Clone()
	}
	return out
}

func (l *Library) sortedIDsLocked() []string {
	ids := make([]string, 0, len(l.records))
	for id := range l.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
