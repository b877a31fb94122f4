package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Keys that Record, Graph, Node, Edge and Settings decode into typed
// fields. Every other key lands in Extra and is written back on encode.
var (
	recordFields   = jsonFields(recordJSON{})
	graphFields    = jsonFields(graphJSON{})
	nodeFields     = jsonFields(nodeJSON{})
	edgeFields     = jsonFields(edgeJSON{})
	settingsFields = jsonFields(settingsJSON{})
)

// Method-free copies of the content types, used to reach the default
// struct encoding from inside MarshalJSON and UnmarshalJSON.
type (
	recordJSON   Record
	graphJSON    Graph
	nodeJSON     Node
	edgeJSON     Edge
	settingsJSON Settings
)

func (r Record) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(recordJSON(r), r.Extra, recordFields)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var v recordJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := extraFields(data, recordFields)
	if err != nil {
		return err
	}
	v.Extra = extra
	*r = Record(v)
	return nil
}

func (g Graph) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(graphJSON(g), g.Extra, graphFields)
}

func (g *Graph) UnmarshalJSON(data []byte) error {
	var v graphJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := extraFields(data, graphFields)
	if err != nil {
		return err
	}
	v.Extra = extra
	*g = Graph(v)
	return nil
}

func (n Node) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(nodeJSON(n), n.Extra, nodeFields)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var v nodeJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := extraFields(data, nodeFields)
	if err != nil {
		return err
	}
	v.Extra = extra
	*n = Node(v)
	return nil
}

func (e Edge) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(edgeJSON(e), e.Extra, edgeFields)
}

func (e *Edge) UnmarshalJSON(data []byte) error {
	var v edgeJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := extraFields(data, edgeFields)
	if err != nil {
		return err
	}
	v.Extra = extra
	*e = Edge(v)
	return nil
}

func (s Settings) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(settingsJSON(s), s.Extra, settingsFields)
}

func (s *Settings) UnmarshalJSON(data []byte) error {
	var v settingsJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := extraFields(data, settingsFields)
	if err != nil {
		return err
	}
	v.Extra = extra
	*s = Settings(v)
	return nil
}

// marshalWithExtra encodes v and merges in the extra keys. Keys that name
// a typed field are ignored so Extra can never shadow one.
func marshalWithExtra(v any, extra map[string]any, known map[string]bool) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for k, val := range extra {
		if known[k] {
			continue
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		fields[k] = raw
	}
	return json.Marshal(fields)
}

// extraFields returns the keys of the JSON object in data that are not in
// known, nil when there are none. Numbers decode as json.Number.
func extraFields(data []byte, known map[string]bool) (map[string]any, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	var extra map[string]any
	for k, raw := range fields {
		if known[k] {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}
	return extra, nil
}

func jsonFields(v any) map[string]bool {
	t := reflect.TypeOf(v)
	out := make(map[string]bool, t.NumField())
	for i := range t.NumField() {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		out[name] = true
	}
	return out
}
