package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKV_SetGet(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.Set(ctx, map[string]any{
		"workflows":   map[string]any{"A": map[string]any{"name": "Scrape"}},
		"isFirstTime": false,
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, []string{"workflows", "isFirstTime"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"A":{"name":"Scrape"}}`, string(got["workflows"]))
	assert.JSONEq(t, `false`, string(got["isFirstTime"]))
}

func TestKV_GetMissingKeysOmitted(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, map[string]any{"a": 1}))

	got, err := s.Get(ctx, []string{"a", "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NotContains(t, got, "missing")
}

func TestKV_GetNoKeys(t *testing.T) {
	s := createTestStore(t)

	got, err := s.Get(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKV_SetOverwrites(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, map[string]any{"k": "first"}))
	require.NoError(t, s.Set(ctx, map[string]any{"k": "second"}))

	got, err := s.Get(ctx, []string{"k"})
	require.NoError(t, err)
	assert.JSONEq(t, `"second"`, string(got["k"]))

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM kv").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestKV_SetRawMessage(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, map[string]any{"raw": json.RawMessage(`{"x":[1,2]}`)}))

	got, err := s.Get(ctx, []string{"raw"})
	require.NoError(t, err)
	assert.Equal(t, `{"x":[1,2]}`, string(got["raw"]))
}

func TestKV_SetInvalidRawMessage(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.Set(ctx, map[string]any{
		"good": "ok",
		"bad":  json.RawMessage(`{not json`),
	})
	require.Error(t, err)

	got, err := s.Get(ctx, []string{"good", "bad"})
	require.NoError(t, err)
	assert.Empty(t, got, "a failed batch writes nothing")
}

func TestKV_SetAssignsIncreasingSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, map[string]any{"b": 1, "a": 2}))
	require.NoError(t, s.Set(ctx, map[string]any{"c": 3}))

	rows, err := s.db.Query("SELECT key, seq FROM kv ORDER BY seq")
	require.NoError(t, err)
	defer rows.Close()

	var keys []string
	var seqs []int64
	for rows.Next() {
		var k string
		var seq int64
		require.NoError(t, rows.Scan(&k, &seq))
		keys = append(keys, k)
		seqs = append(seqs, seq)
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, []string{"a", "b", "c"}, keys, "batch keys are written in sorted order")
	assert.Equal(t, []int64{1, 2, 3}, seqs)
}

func TestKV_Remove(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, map[string]any{"state:A": 1, "draft:A": 2, "keep": 3}))
	require.NoError(t, s.Remove(ctx, []string{"state:A", "draft:A", "unknown"}))

	got, err := s.Get(ctx, []string{"state:A", "draft:A", "keep"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "keep")
}

func TestKV_RemoveNoKeys(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.Remove(context.Background(), nil))
}

func TestKV_PersistsAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/reopen.db"
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, map[string]any{"pinnedWorkflows": []string{"A"}}))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, []string{"pinnedWorkflows"})
	require.NoError(t, err)
	assert.JSONEq(t, `["A"]`, string(got["pinnedWorkflows"]))
}
