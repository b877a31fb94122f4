package records

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/flowsync/internal/testutil"
	"github.com/roach88/flowsync/internal/workflow"
)

// newLoaded returns a loaded library with no seed workflows.
func newLoaded(t *testing.T, kv *testutil.MemoryKV, opts ...Option) *Library {
	t.Helper()
	opts = append([]Option{WithSeed([]workflow.Document{})}, opts...)
	lib := New(kv, opts...)
	_, err := lib.Load(context.Background())
	require.NoError(t, err)
	return lib
}

func record(id string, disabled bool, nodeIDs ...string) workflow.Record {
	rec := workflow.Record{ID: id, Name: "wf " + id, IsDisabled: disabled}
	for i, n := range nodeIDs {
		label := "block"
		if i == 0 {
			label = workflow.TriggerLabel
		}
		rec.Graph.Nodes = append(rec.Graph.Nodes, workflow.Node{ID: n, Label: label})
	}
	return rec
}

func put(t *testing.T, lib *Library, recs ...workflow.Record) {
	t.Helper()
	for _, r := range recs {
		_, err := lib.Upsert(r.ID, r)
		require.NoError(t, err)
	}
	require.NoError(t, lib.Persist(context.Background()))
}

// persisted decodes the workflows key as written to kv.
func persisted(t *testing.T, kv *testutil.MemoryKV) map[string]workflow.Record {
	t.Helper()
	raw, ok := kv.Raw(KeyWorkflows)
	require.True(t, ok, "workflows key not persisted")
	var out map[string]workflow.Record
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

type fakeBackups struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (f *fakeBackups) DeleteBackup(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}
