// Package trigger keeps background execution triggers consistent with the
// enabled state of workflow records.
//
// The work is split in two. Diff is a pure function from a record's
// previous and next state to a Transition. Dispatcher runs transitions
// against a Hook after the record change has been committed. Hook failures
// never undo the record change: record state is authoritative and trigger
// state is best effort.
package trigger
