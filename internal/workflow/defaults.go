package workflow

import "fmt"

// Default settings values applied to records that leave them unset.
const (
	DefaultIcon        = "riGlobalLine"
	DefaultZoom        = 1.3
	DefaultExecContext = "popup"
	DefaultOnError     = "stop-workflow"
	DefaultGlobalData  = "{\n\t\"key\": \"value\"\n}"
)

// NewOptions configures New.
type NewOptions struct {
	// DuplicateID discards any id in the input and assigns a fresh one.
	DuplicateID bool

	// Version stamps the record with the host application version when the
	// input carries none.
	Version string

	// KeepNodes leaves the node list as given. A graph without nodes stays
	// empty instead of receiving a trigger node.
	KeepNodes bool

	IDs   IDGenerator
	Clock Clock
}

// New builds a complete record from partial data. Fields the data leaves
// unset take their defaults; unless KeepNodes is set, a graph without nodes
// gets a single trigger node. The fingerprint is computed before returning.
func New(data Document, opts NewOptions) (Record, error) {
	ids := opts.IDs
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	now := clock.Now()

	doc := data.Clone()
	if doc == nil {
		doc = Document{}
	}
	if opts.DuplicateID {
		delete(doc, "id")
	}
	doc = Fill(doc, defaultDocument(opts.Version))

	if isUnset(doc["id"]) {
		doc["id"] = ids.Generate()
	}
	if graph, ok := doc["drawflow"].(map[string]any); ok && !opts.KeepNodes && isUnset(graph["nodes"]) {
		graph["nodes"] = []any{defaultTriggerNode(ids.Generate())}
	}

	rec, err := doc.Record()
	if err != nil {
		return Record{}, fmt.Errorf("new workflow: %w", err)
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt < rec.CreatedAt {
		rec.UpdatedAt = now
	}
	if err := rec.Refresh(); err != nil {
		return Record{}, fmt.Errorf("new workflow: %w", err)
	}
	return rec, nil
}

func defaultDocument(version string) Document {
	doc := Document{
		"name":        "",
		"icon":        DefaultIcon,
		"description": "",
		"drawflow": map[string]any{
			"edges": []any{},
			"zoom":  DefaultZoom,
			"nodes": []any{},
		},
		"settings":   defaultSettings(),
		"globalData": DefaultGlobalData,
		"isDisabled": false,
	}
	if version != "" {
		doc["version"] = version
	}
	return doc
}

func defaultSettings() map[string]any {
	return map[string]any{
		"publicId":            "",
		"blockDelay":          0,
		"saveLog":             true,
		"debugMode":           false,
		"restartTimes":        3,
		"notification":        true,
		"execContext":         DefaultExecContext,
		"reuseLastState":      false,
		"inputAutocomplete":   true,
		"onError":             DefaultOnError,
		"executedBlockOnWeb":  false,
		"insertDefaultColumn": false,
		"defaultColumnName":   "column",
	}
}

func defaultTriggerNode(id string) map[string]any {
	return map[string]any{
		"id":    id,
		"label": TriggerLabel,
		"type":  "BlockBasic",
		"position": map[string]any{
			"x": 100,
			"y": 300,
		},
		"data": map[string]any{
			"type":        "manual",
			"interval":    60,
			"delay":       5,
			"description": "",
		},
	}
}
