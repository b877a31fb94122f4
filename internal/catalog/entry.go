package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Entry is one workflow in the remote listing.
type Entry struct {
	ID string `json:"id"`

	// Location addresses the content document. Relative locations resolve
	// against the listing URL.
	Location string `json:"url"`

	// Fingerprint is the catalog's claimed graph fingerprint; empty if not
	// reported.
	Fingerprint string `json:"contentHash,omitempty"`

	// UpdatedAt is the remote update time in Unix milliseconds; zero if not
	// reported.
	UpdatedAt int64 `json:"updatedAt,omitempty"`
}

// UnmarshalJSON accepts the content location under "url" or, for older
// catalogs, "name", and the fingerprint under "contentHash" or
// "fingerprint". updatedAt may be Unix milliseconds or an RFC 3339 string.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          string          `json:"id"`
		URL         string          `json:"url"`
		Name        string          `json:"name"`
		ContentHash string          `json:"contentHash"`
		Fingerprint string          `json:"fingerprint"`
		UpdatedAt   json.RawMessage `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.ID = raw.ID
	e.Location = raw.URL
	if e.Location == "" {
		e.Location = raw.Name
	}
	e.Fingerprint = raw.ContentHash
	if e.Fingerprint == "" {
		e.Fingerprint = raw.Fingerprint
	}

	ts, err := parseTimestamp(raw.UpdatedAt)
	if err != nil {
		return fmt.Errorf("entry %q: updatedAt: %w", raw.ID, err)
	}
	e.UpdatedAt = ts
	return nil
}

func parseTimestamp(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		if s == "" {
			return 0, nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return ms, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, err
		}
		return t.UnixMilli(), nil
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// Listing is a parsed remote listing.
type Listing []Entry

// ParseListing decodes a listing. Each entry decodes on its own: entries
// that fail to decode or lack an id are dropped, and for repeated ids the
// first entry wins. The dropped count is returned for logging. Only a
// listing that is not a JSON array is an error.
func ParseListing(data []byte) (Listing, int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("parse listing: %w", err)
	}

	seen := make(map[string]bool, len(raw))
	out := make(Listing, 0, len(raw))
	dropped := 0
	for _, r := range raw {
		var e Entry
		if err := json.Unmarshal(r, &e); err != nil || e.ID == "" || seen[e.ID] {
			dropped++
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out, dropped, nil
}
