// Package reconcile runs sync passes of the local record store against the
// remote catalog.
//
// A pass has three stages:
//
//  1. List. A listing failure aborts the pass before anything local is
//     touched.
//  2. Plan and fetch, in parallel per entry. Each entry is decided against
//     a read-only view of its local record; entries that need content
//     fetch it, validate it and parse it. A failure here only fails that
//     entry.
//  3. Apply, serialized. Each fetched entry is decided again through
//     records.Library.Apply against the current record, so a local edit
//     that landed during the fetch is never overwritten by a decision made
//     on older data. The store is persisted once, then trigger transitions
//     are dispatched.
//
// Passes never overlap. RunPass returns ErrPassInProgress instead of
// waiting, and Scheduler drops interval ticks that fire during a pass.
package reconcile
