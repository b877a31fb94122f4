// Package store provides SQLite-backed durable key-value storage for flowsync.
//
// The host keeps a handful of keys here:
//   - workflows: the full workflow map, written once per mutating batch
//   - isFirstTime: first-run flag consulted when the record store loads
//   - pinnedWorkflows, backupIds, hostedWorkflows: bookkeeping that
//     references workflow IDs
//   - state:<id>, draft:<id>, draft-team:<id>: ephemeral per-workflow state
//
// Values are JSON. Get omits missing keys, Remove ignores them.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - single connection: SQLite has one writer
//
// Every Set and Remove runs in one transaction, so a batch is applied
// completely or not at all.
package store
