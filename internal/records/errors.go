package records

import "errors"

var (
	// ErrNotFound is returned when a selected record does not exist.
	ErrNotFound = errors.New("workflow not found")

	// ErrPersistence wraps failures to flush records to durable storage.
	// In-memory state is unaffected.
	ErrPersistence = errors.New("persistence failed")

	// ErrBackupDelete wraps failures to delete the remote backup of a
	// workflow. Nothing local is changed when it is returned.
	ErrBackupDelete = errors.New("remote backup delete failed")
)
