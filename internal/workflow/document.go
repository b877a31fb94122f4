package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is the untyped JSON object form of a workflow.
// Nested objects are map[string]any and sequences are []any.
type Document map[string]any

// ParseDocument decodes a JSON object. Numbers are kept as json.Number so
// re-encoding does not change their text.
func ParseDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("parse document: not a JSON object")
	}
	return doc, nil
}

// ToDocument converts a record to its Document form. Every struct field is
// present in the result.
func ToDocument(r Record) (Document, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("to document: %w", err)
	}
	return ParseDocument(data)
}

// Record decodes the document into a typed record. The cached fingerprint
// is carried over as-is; callers Refresh when the graph may have changed.
func (d Document) Record() (Record, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return Record{}, fmt.Errorf("decode document: %w", err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode document: %w", err)
	}
	return r, nil
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	return Document(cloneMap(d))
}

// Overlay writes every field set in src over dst, recursing into objects
// present on both sides. Sequences are replaced wholesale, never
// concatenated. Null and absent fields in src leave dst untouched.
// dst is modified and returned.
func Overlay(dst, src Document) Document {
	if dst == nil {
		dst = Document{}
	}
	for k, sv := range src {
		if sv == nil {
			continue
		}
		sm, sIsMap := sv.(map[string]any)
		dm, dIsMap := dst[k].(map[string]any)
		if sIsMap && dIsMap {
			dst[k] = map[string]any(Overlay(Document(dm), Document(sm)))
			continue
		}
		dst[k] = cloneValue(sv)
	}
	return dst
}

// Fill copies fields from src into dst only where dst leaves them unset,
// recursing into objects present on both sides. dst is modified and
// returned.
//
// Unset means absent, null, the empty string, or an empty sequence or
// object. Numbers and booleans are always set: the JSON model has no
// "unset" value for them.
func Fill(dst, src Document) Document {
	if dst == nil {
		dst = Document{}
	}
	for k, sv := range src {
		dv, ok := dst[k]
		if !ok || isUnset(dv) {
			if sv != nil {
				dst[k] = cloneValue(sv)
			}
			continue
		}
		sm, sIsMap := sv.(map[string]any)
		dm, dIsMap := dv.(map[string]any)
		if sIsMap && dIsMap {
			dst[k] = map[string]any(Fill(Document(dm), Document(sm)))
		}
	}
	return dst
}

func isUnset(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
