package merge

import "github.com/roach88/flowsync/internal/workflow"

// Decision is the outcome of Decide.
type Decision int

const (
	// Skip leaves the local record untouched.
	Skip Decision = iota

	// Insert creates a record that does not exist locally.
	Insert

	// Update overlays remote content on the local record.
	Update

	// UpdateWithGraphMerge is an update of a record edited locally since the
	// last sync: the remote fills unset fields and supplies the graph.
	UpdateWithGraphMerge

	// Fetch means the listing cannot settle the outcome; Decide must be
	// called again with content.
	Fetch
)

// String returns the decision name used in logs and reports.
func (d Decision) String() string {
	switch d {
	case Skip:
		return "skip"
	case Insert:
		return "insert"
	case Update:
		return "update"
	case UpdateWithGraphMerge:
		return "update-with-graph-merge"
	case Fetch:
		return "fetch"
	default:
		return "unknown"
	}
}

// Mutates reports whether the decision writes a record.
func (d Decision) Mutates() bool {
	return d == Insert || d == Update || d == UpdateWithGraphMerge
}

// Summary is what the remote listing says about one workflow.
type Summary struct {
	ID string

	// Fingerprint is the listing's claimed graph fingerprint. Empty when the
	// listing does not report one.
	Fingerprint string

	// UpdatedAt is the remote update time in Unix milliseconds. Zero when
	// the listing does not report one.
	UpdatedAt int64
}

// Options tunes Decide.
type Options struct {
	// CheckUpdateDate enables the recency gate: a remote change is admitted
	// only when the local record was updated strictly before it.
	CheckUpdateDate bool
}

// Decide returns what to do with one remote entry.
//
// local is nil when no record with the entry's id exists. content is nil
// until the remote content has been fetched. Rules, first match wins:
//
//  1. No local record: Insert.
//  2. Listing fingerprint equals the local fingerprint: Skip.
//  3. No content yet: Fetch. With content, a recomputed fingerprint equal
//     to the local one: Skip.
//  4. Recency gate enabled and local not strictly older than remote: Skip.
//  5. Local edited since its last sync: UpdateWithGraphMerge, else Update.
//
// When the recency gate already rules out the update from the listing
// alone, Decide returns Skip instead of Fetch: every later rule would skip
// as well, so the content is never needed.
func Decide(local *workflow.Record, remote Summary, content *Content, opts Options) Decision {
	if local == nil {
		return Insert
	}
	if remote.Fingerprint != "" && remote.Fingerprint == local.Fingerprint {
		return Skip
	}

	if content == nil {
		if opts.CheckUpdateDate && remote.UpdatedAt > 0 && local.UpdatedAt >= remote.UpdatedAt {
			return Skip
		}
		return Fetch
	}
	if content.Fingerprint() == local.Fingerprint {
		return Skip
	}

	if opts.CheckUpdateDate {
		if remoteAt := remoteUpdatedAt(remote, content); remoteAt > 0 && local.UpdatedAt >= remoteAt {
			return Skip
		}
	}

	if local.LocallyModified() {
		return UpdateWithGraphMerge
	}
	return Update
}

// remoteUpdatedAt prefers the listing's timestamp and falls back to the
// one carried in the content.
func remoteUpdatedAt(remote Summary, content *Content) int64 {
	if remote.UpdatedAt > 0 {
		return remote.UpdatedAt
	}
	return content.Record.UpdatedAt
}
