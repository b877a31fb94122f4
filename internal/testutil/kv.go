package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrInjected is the default error returned by injected KV failures.
var ErrInjected = errors.New("injected failure")

// MemoryKV is an in-memory store.KV with failure injection.
//
// Values are JSON encoded on Set exactly as the SQLite store does, so
// round-trip behavior matches production.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]json.RawMessage

	// FailGet, FailSet and FailRemove, when non-nil, are returned by the
	// corresponding operation without touching the data.
	FailGet    error
	FailSet    error
	FailRemove error

	sets int
}

// NewMemoryKV creates an empty store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]json.RawMessage)}
}

// Get returns stored values; missing keys are omitted.
func (m *MemoryKV) Get(_ context.Context, keys []string) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailGet != nil {
		return nil, m.FailGet
	}
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out, nil
}

// Set writes every value or none.
func (m *MemoryKV) Set(_ context.Context, values map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSet != nil {
		return m.FailSet
	}
	encoded := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		if raw, ok := v.(json.RawMessage); ok {
			if !json.Valid(raw) {
				return fmt.Errorf("set %q: invalid JSON value", k)
			}
			encoded[k] = append(json.RawMessage(nil), raw...)
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("set %q: %w", k, err)
		}
		encoded[k] = data
	}
	for k, v := range encoded {
		m.data[k] = v
	}
	m.sets++
	return nil
}

// Remove deletes keys; unknown keys are ignored.
func (m *MemoryKV) Remove(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailRemove != nil {
		return m.FailRemove
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Seed stores v under key, bypassing failure injection.
func (m *MemoryKV) Seed(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("MemoryKV.Seed(%q): %v", key, err))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
}

// Raw returns the stored JSON under key.
func (m *MemoryKV) Raw(key string) (json.RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

// Has reports whether key is stored.
func (m *MemoryKV) Has(key string) bool {
	_, ok := m.Raw(key)
	return ok
}

// Keys returns the stored keys with the given prefix, sorted.
func (m *MemoryKV) Keys(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := []string{}
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// SetCalls returns the number of successful Set batches.
func (m *MemoryKV) SetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}
