package workflow

// TriggerLabel is the node label that marks a workflow's designated trigger.
const TriggerLabel = "trigger"

// Record is a persisted workflow definition.
type Record struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Icon        string   `json:"icon"`
	FolderID    string   `json:"folderId,omitempty"`
	Description string   `json:"description"`
	Graph       Graph    `json:"drawflow"`
	Settings    Settings `json:"settings"`
	GlobalData  string   `json:"globalData,omitempty"`
	Version     string   `json:"version,omitempty"`

	// Fingerprint is the cached digest of Graph.
	Fingerprint string `json:"contentHash"`

	// SyncedHash is the Fingerprint of the graph the last time this record
	// was written by a sync pass. A record whose Fingerprint differs from a
	// non-empty SyncedHash has been edited locally since then.
	SyncedHash string `json:"syncedHash,omitempty"`

	CreatedAt  int64 `json:"createdAt"`
	UpdatedAt  int64 `json:"updatedAt"`
	IsDisabled bool  `json:"isDisabled"`

	// Extra holds top-level fields sync does not interpret, such as the
	// editor's table and trigger settings. They round-trip unchanged.
	Extra map[string]any `json:"-"`
}

// Graph is the node/edge content of a workflow.
type Graph struct {
	Nodes []Node  `json:"nodes"`
	Edges []Edge  `json:"edges"`
	Zoom  float64 `json:"zoom,omitempty"`

	Extra map[string]any `json:"-"`
}

// Node is a single block in the workflow graph.
type Node struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Type     string         `json:"type,omitempty"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data,omitempty"`

	// Extra holds node fields other than the above, e.g. events.
	Extra map[string]any `json:"-"`
}

// Position is the editor canvas position of a node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Edge connects two nodes.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`

	Extra map[string]any `json:"-"`
}

// Settings is the execution configuration bag. Only IsDisabled on the
// record (not here) has behavioral consequences for sync.
type Settings struct {
	PublicID            string `json:"publicId"`
	BlockDelay          int    `json:"blockDelay"`
	SaveLog             bool   `json:"saveLog"`
	DebugMode           bool   `json:"debugMode"`
	RestartTimes        int    `json:"restartTimes"`
	Notification        bool   `json:"notification"`
	ExecContext         string `json:"execContext"`
	ReuseLastState      bool   `json:"reuseLastState"`
	InputAutocomplete   bool   `json:"inputAutocomplete"`
	OnError             string `json:"onError"`
	ExecutedBlockOnWeb  bool   `json:"executedBlockOnWeb"`
	InsertDefaultColumn bool   `json:"insertDefaultColumn"`
	DefaultColumnName   string `json:"defaultColumnName"`

	Extra map[string]any `json:"-"`
}

// TriggerNode returns the first node labeled as the trigger.
func (r Record) TriggerNode() (Node, bool) {
	for _, n := range r.Graph.Nodes {
		if n.Label == TriggerLabel {
			return n, true
		}
	}
	return Node{}, false
}

// Refresh recomputes the cached fingerprint from the current graph.
func (r *Record) Refresh() error {
	fp, err := Fingerprint(r.Graph)
	if err != nil {
		return err
	}
	r.Fingerprint = fp
	return nil
}

// LocallyModified reports whether the graph changed since the last sync
// wrote this record.
func (r Record) LocallyModified() bool {
	return r.SyncedHash != "" && r.SyncedHash != r.Fingerprint
}

// Clone returns a deep copy. Records handed out by the store are clones so
// callers never alias the authoritative map.
func (r Record) Clone() Record {
	out := r
	out.Extra = cloneMap(r.Extra)
	out.Settings.Extra = cloneMap(r.Settings.Extra)
	out.Graph.Extra = cloneMap(r.Graph.Extra)
	if r.Graph.Nodes != nil {
		out.Graph.Nodes = make([]Node, len(r.Graph.Nodes))
		for i, n := range r.Graph.Nodes {
			n.Data = cloneMap(n.Data)
			n.Extra = cloneMap(n.Extra)
			out.Graph.Nodes[i] = n
		}
	}
	if r.Graph.Edges != nil {
		out.Graph.Edges = make([]Edge, len(r.Graph.Edges))
		for i, e := range r.Graph.Edges {
			e.Extra = cloneMap(e.Extra)
			out.Graph.Edges[i] = e
		}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		arr := make([]any, len(val))
		for i, elem := range val {
			arr[i] = cloneValue(elem)
		}
		return arr
	default:
		return val
	}
}
