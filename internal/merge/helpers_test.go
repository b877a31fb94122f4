package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/flowsync/internal/workflow"
)

type fixedClock int64

func (c fixedClock) Now() int64 { return int64(c) }

func nodesDoc(ids ...string) []any {
	nodes := make([]any, len(ids))
	for i, id := range ids {
		nodes[i] = map[string]any{
			"id":       id,
			"label":    "block",
			"position": map[string]any{"x": float64(i * 10), "y": 20.0},
		}
	}
	return nodes
}

func graphOf(ids ...string) workflow.Graph {
	g := workflow.Graph{Edges: []workflow.Edge{}}
	for i, id := range ids {
		g.Nodes = append(g.Nodes, workflow.Node{
			ID:       id,
			Label:    "block",
			Position: workflow.Position{X: float64(i * 10), Y: 20},
		})
	}
	return g
}

// synced returns a record as a previous sync pass would have left it.
func synced(t *testing.T, id string, updatedAt int64, nodeIDs ...string) *workflow.Record {
	t.Helper()
	rec := workflow.Record{
		ID:        id,
		Name:      "local " + id,
		Icon:      "riLocal",
		Graph:     graphOf(nodeIDs...),
		Settings:  workflow.Settings{OnError: "keep-running", RestartTimes: 1},
		CreatedAt: 100,
		UpdatedAt: updatedAt,
	}
	require.NoError(t, rec.Refresh())
	rec.SyncedHash = rec.Fingerprint
	return &rec
}

// edited changes the local graph without syncing.
func edited(t *testing.T, rec *workflow.Record, nodeIDs ...string) *workflow.Record {
	t.Helper()
	out := rec.Clone()
	out.Graph = graphOf(nodeIDs...)
	require.NoError(t, out.Refresh())
	return &out
}

func remoteContent(t *testing.T, doc workflow.Document) *Content {
	t.Helper()
	c, err := NewContent(doc)
	require.NoError(t, err)
	return c
}
