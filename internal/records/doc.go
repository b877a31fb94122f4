// Package records owns the authoritative in-memory collection of workflow
// records and its durable copy.
//
// Library is the single writer. Every mutation, whether from a sync pass,
// a local edit or a deletion, goes through its methods and is serialized by
// one lock. Apply is a read-modify-write against the current in-memory
// value, so a sync pass never acts on a snapshot that a concurrent local
// edit has already replaced.
//
// Persistence is batched: mutating operations change memory first and
// flush the full map once. A failed flush leaves memory authoritative; the
// next successful flush catches durable state up.
//
// Durable keys:
//
//	workflows          full record map, keyed by id
//	isFirstTime        first-run flag; true (or absent on an empty store)
//	                   seeds the bundled default workflows
//	hostedWorkflows    ids shared to the remote catalog
//	backupIds          ids backed up to the remote catalog
//	pinnedWorkflows    ids pinned by the user
//	state:<id>, draft:<id>, draft-team:<id>
//	                   per-workflow ephemeral state removed on delete
package records
