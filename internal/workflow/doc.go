// Package workflow defines the local workflow record model shared by every
// other flowsync package.
//
// A Record is the unit of synchronization. Its Graph (the node/edge payload
// edited by the visual editor) is the only semantically meaningful content;
// its Fingerprint is a cached digest of that graph and is the change
// detection key used by sync and by local edits.
//
// Key constraints:
//   - Fingerprint is order-sensitive on nodes and edges. Node order carries
//     execution meaning, so reordering nodes changes the digest.
//   - Fingerprint is never stale at rest. Callers that change Graph call
//     Refresh before the record is stored.
//   - Timestamps are Unix milliseconds.
//   - JSON field names match the wire format served by the remote catalog
//     ("drawflow", "contentHash", "isDisabled", ...).
//
// Document is the untyped view of the same JSON. Merges operate on
// Documents so that "the remote did not send this field" stays
// distinguishable from "the remote sent the zero value".
package workflow
