package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/roach88/flowsync/internal/catalog"
)

// FakeCatalog is an in-memory remote catalog.
//
// Implements reconcile.Source. Safe for concurrent use.
type FakeCatalog struct {
	mu       sync.Mutex
	listing  catalog.Listing
	contents map[string][]byte
	fetches  map[string]int

	// FailList, when non-nil, is returned by List.
	FailList error

	// FailFetch maps an entry id to the error Fetch returns for it.
	FailFetch map[string]error

	// OnFetch, when set, runs before Fetch returns content. Tests use it
	// to interleave local edits with a pass.
	OnFetch func(entry catalog.Entry)
}

// NewFakeCatalog creates an empty catalog.
func NewFakeCatalog() *FakeCatalog {
	return &FakeCatalog{
		contents:  make(map[string][]byte),
		fetches:   make(map[string]int),
		FailFetch: make(map[string]error),
	}
}

// SetListing replaces the listing.
func (f *FakeCatalog) SetListing(entries ...catalog.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listing = append(catalog.Listing(nil), entries...)
}

// SetContent stores the content served for id. Strings and byte slices
// are served verbatim; anything else is JSON encoded.
func (f *FakeCatalog) SetContent(id string, content any) {
	var data []byte
	switch c := content.(type) {
	case string:
		data = []byte(c)
	case []byte:
		data = append([]byte(nil), c...)
	default:
		var err error
		if data, err = json.Marshal(c); err != nil {
			panic(fmt.Sprintf("FakeCatalog.SetContent(%q): %v", id, err))
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contents[id] = data
}

// List returns the listing.
func (f *FakeCatalog) List(_ context.Context) (catalog.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailList != nil {
		return nil, f.FailList
	}
	return append(catalog.Listing(nil), f.listing...), nil
}

// Fetch returns the content stored for entry.ID.
func (f *FakeCatalog) Fetch(ctx context.Context, entry catalog.Entry) ([]byte, error) {
	f.mu.Lock()
	f.fetches[entry.ID]++
	failure := f.FailFetch[entry.ID]
	data, ok := f.contents[entry.ID]
	hook := f.OnFetch
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	if !ok {
		return nil, fmt.Errorf("fetch %s: no content", entry.ID)
	}
	if hook != nil {
		hook(entry)
	}
	return append([]byte(nil), data...), nil
}

// Fetches returns how many times id was fetched.
func (f *FakeCatalog) Fetches(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[id]
}

// TotalFetches returns the number of Fetch calls.
func (f *FakeCatalog) TotalFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.fetches {
		n += c
	}
	return n
}

// ResetFetches zeroes the fetch counters.
func (f *FakeCatalog) ResetFetches() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = make(map[string]int)
}
