package reconcile

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/flowsync/internal/catalog"
	"github.com/roach88/flowsync/internal/records"
	"github.com/roach88/flowsync/internal/testutil"
	"github.com/roach88/flowsync/internal/workflow"
)

type fixture struct {
	kv      *testutil.MemoryKV
	clock   *testutil.ManualClock
	hook    *testutil.RecordingHook
	catalog *testutil.FakeCatalog
	lib     *records.Library
	rec     *Reconciler
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		kv:      testutil.NewMemoryKV(),
		clock:   testutil.NewManualClock(1000, 0),
		hook:    testutil.NewRecordingHook(),
		catalog: testutil.NewFakeCatalog(),
	}
	ids := testutil.NewSequenceGenerator("gen")
	f.lib = records.New(f.kv,
		records.WithClock(f.clock),
		records.WithIDGenerator(ids),
		records.WithSeed([]workflow.Document{}),
		records.WithTriggerHook(f.hook),
	)
	_, err := f.lib.Load(context.Background())
	require.NoError(t, err)

	validator, err := workflow.NewValidator()
	require.NoError(t, err)

	opts = append([]Option{
		WithClock(f.clock),
		WithIDGenerator(ids),
		WithValidator(validator),
		WithTriggerHook(f.hook),
	}, opts...)
	f.rec = New(f.catalog, f.lib, opts...)
	return f
}

func (f *fixture) pass(t *testing.T) Report {
	t.Helper()
	report, err := f.rec.RunPass(context.Background())
	require.NoError(t, err)
	return report
}

// nodes builds a JSON node list with the given ids; the first is the
// trigger.
func nodes(ids ...string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		label := "block"
		if i == 0 {
			label = workflow.TriggerLabel
		}
		out[i] = map[string]any{
			"id":       id,
			"label":    label,
			"position": map[string]any{"x": float64(i * 100), "y": 0.0},
		}
	}
	return out
}

func content(ids ...string) map[string]any {
	return map[string]any{
		"name":     "remote",
		"drawflow": map[string]any{"nodes": nodes(ids...), "edges": []any{}},
	}
}

// graphFingerprint is the fingerprint of the graph described by content.
func graphFingerprint(t *testing.T, c map[string]any) string {
	t.Helper()
	data, err := json.Marshal(c)
	require.NoError(t, err)
	doc, err := workflow.ParseDocument(data)
	require.NoError(t, err)
	rec, err := doc.Record()
	require.NoError(t, err)
	return workflow.MustFingerprint(rec.Graph)
}

func entry(id, fingerprint string) catalog.Entry {
	return catalog.Entry{ID: id, Location: "/workflows/" + id + ".json", Fingerprint: fingerprint}
}

// seedLocal stores a record with the graph described by c.
func (f *fixture) seedLocal(t *testing.T, id string, c map[string]any) workflow.Record {
	t.Helper()
	c = cloneContent(c)
	c["id"] = id
	data, err := json.Marshal(c)
	require.NoError(t, err)
	doc, err := workflow.ParseDocument(data)
	require.NoError(t, err)
	rec, err := doc.Record()
	require.NoError(t, err)
	stored, err := f.lib.Upsert(id, rec)
	require.NoError(t, err)
	require.NoError(t, f.lib.Persist(context.Background()))
	return stored
}

func cloneContent(c map[string]any) map[string]any {
	return map[string]any(workflow.Document(c).Clone())
}
