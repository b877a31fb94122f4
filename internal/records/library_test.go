package records

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowsync/internal/testutil"
	"github.com/roach88/flowsync/internal/workflow"
)

func TestLoad_FirstRunSeedsDefaults(t *testing.T) {
	kv := testutil.NewMemoryKV()
	lib := New(kv,
		WithClock(testutil.NewManualClock(1000, 0)),
		WithIDGenerator(workflow.NewFixedGenerator()),
	)

	recs, err := lib.Load(context.Background())
	require.NoError(t, err)

	seed, err := DefaultSeed()
	require.NoError(t, err)
	assert.Len(t, recs, len(seed))

	gs, ok := recs["seed-google-search"]
	require.True(t, ok)
	assert.Equal(t, "Google search", gs.Name)
	assert.Len(t, gs.Graph.Nodes, 3)
	assert.Equal(t, workflow.MustFingerprint(gs.Graph), gs.Fingerprint)
	assert.Equal(t, int64(1000), gs.CreatedAt)
	assert.Equal(t, workflow.DefaultOnError, gs.Settings.OnError, "seeded records get defaults")

	first, ok := kv.Raw(KeyFirstTime)
	require.True(t, ok)
	assert.JSONEq(t, `false`, string(first))
	assert.Len(t, persisted(t, kv), len(seed), "seeded records are persisted immediately")
}

func TestLoad_FirstTimeFlagSeeds(t *testing.T) {
	kv := testutil.NewMemoryKV()
	kv.Seed(KeyFirstTime, true)
	kv.Seed(KeyWorkflows, map[string]any{})

	lib := New(kv, WithSeed([]workflow.Document{
		{"id": "S", "drawflow": map[string]any{"nodes": []any{map[string]any{"id": "t", "label": "trigger"}}}},
	}))
	recs, err := lib.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, recs, "S")
}

func TestLoad_NoSeedWhenFlagCleared(t *testing.T) {
	kv := testutil.NewMemoryKV()
	kv.Seed(KeyFirstTime, false)

	lib := New(kv)
	recs, err := lib.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestLoad_ObjectForm(t *testing.T) {
	kv := testutil.NewMemoryKV()
	kv.Seed(KeyFirstTime, false)
	kv.Seed(KeyWorkflows, map[string]any{
		"A": map[string]any{
			"id":          "A",
			"name":        "Alpha",
			"contentHash": "legacy-hash",
			"drawflow":    map[string]any{"nodes": []any{map[string]any{"id": "n1", "label": "trigger"}}},
		},
		"B": map[string]any{"name": "no inner id"},
	})

	lib := New(kv)
	recs, err := lib.Load(context.Background())
	require.NoError(t, err)

	require.Contains(t, recs, "A")
	a := recs["A"]
	assert.Equal(t, "Alpha", a.Name)
	assert.Equal(t, workflow.MustFingerprint(a.Graph), a.Fingerprint, "stale hashes are recomputed on load")

	require.Contains(t, recs, "B", "map key supplies a missing id")
	assert.Equal(t, "B", recs["B"].ID)
}

func TestLoad_ArrayForm(t *testing.T) {
	kv := testutil.NewMemoryKV()
	kv.Seed(KeyFirstTime, false)
	kv.Seed(KeyWorkflows, []map[string]any{
		{"id": "A", "name": "Alpha"},
		{"id": "B", "name": "Beta"},
	})

	lib := New(kv)
	recs, err := lib.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, "Beta", recs["B"].Name)
}

func TestLoad_ArrayEntryWithoutID(t *testing.T) {
	kv := testutil.NewMemoryKV()
	kv.Seed(KeyFirstTime, false)
	kv.Seed(KeyWorkflows, []map[string]any{{"name": "anonymous"}})

	_, err := New(kv).Load(context.Background())
	assert.Error(t, err)
}

func TestLoad_Idempotent(t *testing.T) {
	kv := testutil.NewMemoryKV()
	lib := newLoaded(t, kv)
	put(t, lib, record("A", false, "n1"))

	kv.Seed(KeyWorkflows, map[string]any{})

	recs, err := lib.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, recs, "A", "a second Load does not reread storage")
}

func TestLoad_StorageError(t *testing.T) {
	kv := testutil.NewMemoryKV()
	kv.FailGet = testutil.ErrInjected

	_, err := New(kv).Load(context.Background())
	assert.ErrorIs(t, err, testutil.ErrInjected)
}

func TestLoad_SeedPersistFailure(t *testing.T) {
	kv := testutil.NewMemoryKV()
	kv.FailSet = testutil.ErrInjected

	_, err := New(kv).Load(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestUpsert_StampsAndRefreshes(t *testing.T) {
	clock := testutil.NewManualClock(1000, 0)
	lib := newLoaded(t, testutil.NewMemoryKV(), WithClock(clock))

	rec := record("A", false, "n1")
	rec.Fingerprint = "stale"
	stored, err := lib.Upsert("A", rec)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), stored.CreatedAt)
	assert.Equal(t, int64(1000), stored.UpdatedAt)
	assert.Equal(t, workflow.MustFingerprint(stored.Graph), stored.Fingerprint)

	clock.Set(500)
	rec.CreatedAt = 5
	stored, err = lib.Upsert("A", rec)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), stored.UpdatedAt, "updatedAt never decreases")
	assert.Equal(t, int64(1000), stored.CreatedAt, "createdAt is kept from the stored record")

	clock.Set(2000)
	stored, err = lib.Upsert("A", rec)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), stored.UpdatedAt)
}

func TestUpsert_ForcesID(t *testing.T) {
	lib := newLoaded(t, testutil.NewMemoryKV())

	stored, err := lib.Upsert("A", record("other", false))
	require.NoError(t, err)
	assert.Equal(t, "A", stored.ID)

	_, ok := lib.Get("other")
	assert.False(t, ok)
}

func TestGet_ReturnsClone(t *testing.T) {
	lib := newLoaded(t, testutil.NewMemoryKV())
	put(t, lib, record("A", false, "n1"))

	got, ok := lib.Get("A")
	require.True(t, ok)
	got.Graph.Nodes[0].ID = "mutated"

	again, _ := lib.Get("A")
	assert.Equal(t, "n1", again.Graph.Nodes[0].ID)
}

func TestList_SortedByID(t *testing.T) {
	lib := newLoaded(t, testutil.NewMemoryKV())
	put(t, lib, record("C", false), record("A", false), record("B", false))

	var ids []string
	for _, r := range lib.List() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"A", "B", "C"}, ids)
	assert.Equal(t, 3, lib.Len())
}

func TestApply(t *testing.T) {
	clock := testutil.NewManualClock(1000, 0)
	lib := newLoaded(t, testutil.NewMemoryKV(), WithClock(clock))
	put(t, lib, record("A", false, "n1"))
	clock.Set(3000)

	change, err := lib.Apply("A", func(cur *workflow.Record) (*workflow.Record, error) {
		require.NotNil(t, cur)
		next := *cur
		next.Name = "renamed"
		return &next, nil
	})
	require.NoError(t, err)
	assert.True(t, change.Changed)
	require.NotNil(t, change.Prev)
	assert.Equal(t, "wf A", change.Prev.Name)
	assert.Equal(t, "renamed", change.Next.Name)
	assert.Equal(t, int64(3000), change.Next.UpdatedAt)

	got, _ := lib.Get("A")
	assert.Equal(t, "renamed", got.Name)
}

func TestApply_NilResultLeavesRecord(t *testing.T) {
	lib := newLoaded(t, testutil.NewMemoryKV())
	put(t, lib, record("A", false, "n1"))
	before, _ := lib.Get("A")

	change, err := lib.Apply("A", func(cur *workflow.Record) (*workflow.Record, error) {
		cur.Name = "mutating the argument has no effect"
		return nil, nil
	})
	require.NoError(t, err)
	assert.False(t, change.Changed)

	after, _ := lib.Get("A")
	assert.Equal(t, before, after)
}

func TestApply_AbsentRecord(t *testing.T) {
	lib := newLoaded(t, testutil.NewMemoryKV())

	change, err := lib.Apply("new", func(cur *workflow.Record) (*workflow.Record, error) {
		assert.Nil(t, cur)
		rec := record("new", false)
		return &rec, nil
	})
	require.NoError(t, err)
	assert.Nil(t, change.Prev)
	assert.True(t, change.Changed)
	assert.Equal(t, 1, lib.Len())
}

func TestApply_ErrorLeavesRecord(t *testing.T) {
	lib := newLoaded(t, testutil.NewMemoryKV())
	boom := errors.New("boom")

	_, err := lib.Apply("A", func(*workflow.Record) (*workflow.Record, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, lib.Len())
}

func TestRemove(t *testing.T) {
	lib := newLoaded(t, testutil.NewMemoryKV())
	put(t, lib, record("A", false), record("B", false))

	removed := lib.Remove("A", "unknown")
	assert.Equal(t, []string{"A"}, removed)
	assert.Equal(t, 1, lib.Len())

	assert.Empty(t, lib.Remove("unknown"))
}

func TestPersist_FailureKeepsMemory(t *testing.T) {
	kv := testutil.NewMemoryKV()
	lib := newLoaded(t, kv)

	_, err := lib.Upsert("A", record("A", false, "n1"))
	require.NoError(t, err)

	kv.FailSet = testutil.ErrInjected
	err = lib.Persist(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, testutil.ErrInjected)

	_, ok := lib.Get("A")
	assert.True(t, ok, "memory stays authoritative after a failed flush")

	kv.FailSet = nil
	require.NoError(t, lib.Persist(context.Background()))
	assert.Contains(t, persisted(t, kv), "A", "the next flush catches durable state up")
}

func TestDefaultSeedParses(t *testing.T) {
	docs, err := DefaultSeed()
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	for _, d := range docs {
		assert.NotEmpty(t, d["id"])
		assert.NotNil(t, d["drawflow"])
	}
}

func TestParseSeed_RejectsUnknownFields(t *testing.T) {
	_, err := parseSeed([]byte("flows: []\n"))
	assert.Error(t, err)
}
