package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeCatalog serves a listing at /listing.json, content at
// /workflows/{id}.json and backup deletion at DELETE /api/me/workflows.
type fakeCatalog struct {
	*httptest.Server

	mu       sync.Mutex
	listing  []map[string]any
	content  map[string]string
	failList bool
	failAPI  bool
	deleted  []string
}

func newFakeCatalog(t *testing.T) *fakeCatalog {
	t.Helper()
	c := &fakeCatalog{content: map[string]string{}}
	c.Server = httptest.NewServer(http.HandlerFunc(c.serve))
	t.Cleanup(c.Close)
	return c
}

func (c *fakeCatalog) serve(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case r.URL.Path == "/listing.json":
		if c.failList {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(c.listing)

	case strings.HasPrefix(r.URL.Path, "/workflows/"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/workflows/"), ".json")
		body, ok := c.content[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))

	case r.URL.Path == "/api/me/workflows" && r.Method == http.MethodDelete:
		if c.failAPI {
			http.Error(w, `{"message":"backend down"}`, http.StatusInternalServerError)
			return
		}
		c.deleted = append(c.deleted, r.URL.Query().Get("id"))
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

// publish lists id and serves a single-node workflow named name for it.
func (c *fakeCatalog) publish(id, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listing = append(c.listing, map[string]any{"id": id, "url": "/workflows/" + id + ".json"})
	c.content[id] = fmt.Sprintf(`{"name":%q,"drawflow":{"nodes":[{"id":"%s-t","label":"trigger"}],"edges":[]}}`, name, id)
}

// listOnly lists id without serving its content.
func (c *fakeCatalog) listOnly(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listing = append(c.listing, map[string]any{"id": id, "url": "/workflows/" + id + ".json"})
}

func (c *fakeCatalog) deletedIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deleted...)
}

// testWorkspace is an isolated directory with a config file.
type testWorkspace struct {
	dir    string
	db     string
	config string
}

// newTestWorkspace writes a config pointing at catalog (nil for none) and
// isolates HOME and the working directory.
func newTestWorkspace(t *testing.T, catalog *fakeCatalog) testWorkspace {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)

	ws := testWorkspace{
		dir:    dir,
		db:     filepath.Join(dir, "data", "flowsync.db"),
		config: filepath.Join(dir, "flowsync.yaml"),
	}

	var b strings.Builder
	fmt.Fprintf(&b, "db_path: %q\n", ws.db)
	if catalog != nil {
		fmt.Fprintf(&b, "catalog:\n")
		fmt.Fprintf(&b, "  listing_url: %q\n", catalog.URL+"/listing.json")
		fmt.Fprintf(&b, "  api_url: %q\n", catalog.URL+"/api")
		fmt.Fprintf(&b, "  retries: 0\n")
	}
	require.NoError(t, os.WriteFile(ws.config, []byte(b.String()), 0644))
	return ws
}

// execute runs the root command with args after --config.
func (ws testWorkspace) execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--config", ws.config}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// decodeResponse decodes a JSON CLI response, leaving data raw.
func decodeResponse(t *testing.T, out string) (CLIResponse, json.RawMessage) {
	t.Helper()
	var resp struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp.CLIResponse, resp.Data
}
