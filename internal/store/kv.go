package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// KV is the durable key-value contract consumed by the record store.
//
// Implemented by *Store (SQLite) and by testutil.MemoryKV.
type KV interface {
	// Get returns the values stored under keys. Missing keys are omitted
	// from the result, never an error.
	Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error)

	// Set writes every value in one batch. Values are JSON encoded;
	// json.RawMessage values are stored as-is.
	Set(ctx context.Context, values map[string]any) error

	// Remove deletes keys. Unknown keys are a no-op.
	Remove(ctx context.Context, keys []string) error
}

var _ KV = (*Store)(nil)

// Get returns the stored values for keys.
func (s *Store) Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	query := `SELECT key, value FROM kv WHERE key IN (` + placeholders(len(keys)) + `)`
	rows, err := s.db.QueryContext(ctx, query, toArgs(keys)...)
	if err != nil {
		return nil, fmt.Errorf("get keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("get keys: scan: %w", err)
		}
		out[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get keys: iterate: %w", err)
	}

	return out, nil
}

// Set writes values in a single transaction. Keys are written in sorted
// order so seq assignment is deterministic for a given batch.
func (s *Store) Set(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}

	encoded := make(map[string]string, len(values))
	for k, v := range values {
		data, err := encodeValue(v)
		if err != nil {
			return fmt.Errorf("set %q: %w", k, err)
		}
		encoded[k] = data
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM kv`).Scan(&seq); err != nil {
		return fmt.Errorf("set: read seq: %w", err)
	}

	for _, k := range sortedKeys(encoded) {
		seq++
		_, err := tx.ExecContext(ctx, `
			INSERT INTO kv (key, value, seq)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, seq = excluded.seq
		`, k, encoded[k], seq)
		if err != nil {
			return fmt.Errorf("set %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set: commit: %w", err)
	}
	return nil
}

// Remove deletes keys in a single statement.
func (s *Store) Remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	query := `DELETE FROM kv WHERE key IN (` + placeholders(len(keys)) + `)`
	if _, err := s.db.ExecContext(ctx, query, toArgs(keys)...); err != nil {
		return fmt.Errorf("remove keys: %w", err)
	}
	return nil
}

func encodeValue(v any) (string, error) {
	if raw, ok := v.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return "", fmt.Errorf("invalid JSON value")
		}
		return string(raw), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(keys []string) []any {
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return args
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
