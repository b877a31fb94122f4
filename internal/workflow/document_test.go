package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock int64

func (c fixedClock) Now() int64 { return int64(c) }

func TestParseDocumentKeepsNumbers(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"updatedAt":1700000000123,"drawflow":{"zoom":1.3}}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("1700000000123"), doc["updatedAt"])
}

func TestParseDocumentRejectsNonObject(t *testing.T) {
	_, err := ParseDocument([]byte(`null`))
	assert.Error(t, err)

	_, err = ParseDocument([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestOverlay(t *testing.T) {
	dst := Document{
		"name":     "local",
		"icon":     "riLocal",
		"settings": map[string]any{"onError": "stop-workflow", "restartTimes": 3},
		"drawflow": map[string]any{"nodes": []any{"a", "b", "c"}},
	}
	src := Document{
		"name":     "remote",
		"icon":     nil,
		"settings": map[string]any{"restartTimes": 5},
		"drawflow": map[string]any{"nodes": []any{"x"}},
	}

	out := Overlay(dst, src)

	assert.Equal(t, "remote", out["name"], "set remote fields win")
	assert.Equal(t, "riLocal", out["icon"], "null remote fields leave local untouched")
	settings := out["settings"].(map[string]any)
	assert.Equal(t, "stop-workflow", settings["onError"], "objects merge recursively")
	assert.Equal(t, 5, settings["restartTimes"])
	assert.Equal(t, []any{"x"}, out["drawflow"].(map[string]any)["nodes"], "sequences are replaced, not concatenated")
}

func TestOverlayDoesNotAliasSource(t *testing.T) {
	src := Document{"settings": map[string]any{"k": "v"}}
	out := Overlay(Document{}, src)
	out["settings"].(map[string]any)["k"] = "changed"
	assert.Equal(t, "v", src["settings"].(map[string]any)["k"])
}

func TestFill(t *testing.T) {
	dst := Document{
		"name":        "local",
		"description": "",
		"isDisabled":  false,
		"settings":    map[string]any{"onError": "keep-running"},
		"drawflow":    map[string]any{"nodes": []any{}},
	}
	src := Document{
		"name":        "remote",
		"description": "from remote",
		"icon":        "riRemote",
		"isDisabled":  true,
		"settings":    map[string]any{"onError": "stop-workflow", "restartTimes": 3},
		"drawflow":    map[string]any{"nodes": []any{"r1"}},
	}

	out := Fill(dst, src)

	assert.Equal(t, "local", out["name"], "set local fields are kept")
	assert.Equal(t, "from remote", out["description"], "empty strings are unset")
	assert.Equal(t, "riRemote", out["icon"], "absent fields are filled")
	assert.Equal(t, false, out["isDisabled"], "booleans are always set")
	settings := out["settings"].(map[string]any)
	assert.Equal(t, "keep-running", settings["onError"])
	assert.Equal(t, 3, settings["restartTimes"])
	assert.Equal(t, []any{"r1"}, out["drawflow"].(map[string]any)["nodes"], "empty sequences are unset")
}

func TestDocumentRecordRoundTrip(t *testing.T) {
	rec := Record{
		ID:         "A",
		Name:       "Scrape",
		Graph:      testGraph("n1"),
		Settings:   Settings{OnError: DefaultOnError, RestartTimes: 3},
		CreatedAt:  1000,
		UpdatedAt:  2000,
		IsDisabled: true,
	}
	require.NoError(t, rec.Refresh())

	doc, err := ToDocument(rec)
	require.NoError(t, err)
	assert.Equal(t, "A", doc["id"])
	assert.Contains(t, doc, "drawflow")
	assert.Contains(t, doc, "contentHash")

	back, err := doc.Record()
	require.NoError(t, err)
	assert.Equal(t, rec, back)
}

func TestNewDefaults(t *testing.T) {
	rec, err := New(nil, NewOptions{
		IDs:     NewFixedGenerator("wf-1", "node-1"),
		Clock:   fixedClock(1000),
		Version: "1.2.0",
	})
	require.NoError(t, err)

	assert.Equal(t, "wf-1", rec.ID)
	assert.Equal(t, DefaultIcon, rec.Icon)
	assert.Equal(t, "1.2.0", rec.Version)
	assert.Equal(t, DefaultGlobalData, rec.GlobalData)
	assert.Equal(t, int64(1000), rec.CreatedAt)
	assert.Equal(t, int64(1000), rec.UpdatedAt)
	assert.False(t, rec.IsDisabled)

	require.Len(t, rec.Graph.Nodes, 1)
	assert.Equal(t, "node-1", rec.Graph.Nodes[0].ID)
	assert.Equal(t, TriggerLabel, rec.Graph.Nodes[0].Label)
	assert.Equal(t, DefaultZoom, rec.Graph.Zoom)

	assert.Equal(t, 3, rec.Settings.RestartTimes)
	assert.Equal(t, DefaultOnError, rec.Settings.OnError)
	assert.Equal(t, DefaultExecContext, rec.Settings.ExecContext)
	assert.True(t, rec.Settings.SaveLog)

	assert.Equal(t, MustFingerprint(rec.Graph), rec.Fingerprint)
}

func TestNewKeepsSuppliedNodes(t *testing.T) {
	data := Document{
		"id":   "wf-7",
		"name": "Imported",
		"drawflow": map[string]any{
			"nodes": []any{
				map[string]any{"id": "n1", "label": "new-tab"},
				map[string]any{"id": "n2", "label": "trigger"},
			},
		},
		"settings":  map[string]any{"restartTimes": 9},
		"createdAt": 500,
		"updatedAt": 700,
	}

	rec, err := New(data, NewOptions{IDs: NewFixedGenerator(), Clock: fixedClock(1000)})
	require.NoError(t, err)

	assert.Equal(t, "wf-7", rec.ID)
	assert.Equal(t, "Imported", rec.Name)
	require.Len(t, rec.Graph.Nodes, 2, "default trigger node is not added when nodes are supplied")
	assert.Equal(t, "n1", rec.Graph.Nodes[0].ID)
	assert.Equal(t, 9, rec.Settings.RestartTimes)
	assert.Equal(t, DefaultOnError, rec.Settings.OnError, "unset settings take defaults")
	assert.Equal(t, int64(500), rec.CreatedAt)
	assert.Equal(t, int64(700), rec.UpdatedAt)
	assert.Nil(t, data["icon"], "input document is not modified")
}

func TestNewKeepNodesLeavesEmptyGraph(t *testing.T) {
	data := Document{"id": "wf-1", "drawflow": map[string]any{"nodes": []any{}}}

	rec, err := New(data, NewOptions{KeepNodes: true, IDs: NewFixedGenerator(), Clock: fixedClock(1000)})
	require.NoError(t, err)

	assert.Empty(t, rec.Graph.Nodes, "no trigger node is seeded")
	assert.Equal(t, MustFingerprint(Graph{}), rec.Fingerprint)
}

func TestNewDuplicateID(t *testing.T) {
	data := Document{
		"id":       "original",
		"drawflow": map[string]any{"nodes": []any{map[string]any{"id": "n1", "label": "trigger"}}},
	}

	rec, err := New(data, NewOptions{DuplicateID: true, IDs: NewFixedGenerator("copy-1"), Clock: fixedClock(1)})
	require.NoError(t, err)
	assert.Equal(t, "copy-1", rec.ID)
	assert.Equal(t, "original", data["id"])
}

func TestNewRejectsMalformedGraph(t *testing.T) {
	_, err := New(Document{"drawflow": "not an object"}, NewOptions{IDs: NewFixedGenerator("x"), Clock: fixedClock(1)})
	assert.Error(t, err)
}

func TestFixedGeneratorExhausted(t *testing.T) {
	gen := NewFixedGenerator("one")
	assert.Equal(t, "one", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	a, b := gen.Generate(), gen.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
