// Package merge decides whether remote workflow content supersedes a local
// record and builds the resulting record.
//
// Decide is pure: it never fetches. When the listing alone cannot settle
// the outcome it returns Fetch, and the caller asks again once content is
// available. A listing fingerprint is only a hint to avoid the fetch; once
// content is in hand its recomputed fingerprint is what counts.
//
// Apply implements the field-level rules:
//   - Update: every field the remote sets wins. Objects merge recursively,
//     sequences are replaced wholesale.
//   - UpdateWithGraphMerge (local edited since the last sync): the remote
//     only fills fields the local record leaves unset, but the graph is
//     always the remote graph.
//
// Both keep the local id and createdAt and recompute the fingerprint.
package merge
