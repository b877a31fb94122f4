package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrPassInProgress is returned by RunPass while another pass runs.
var ErrPassInProgress = errors.New("sync pass already in progress")

// ErrorCode categorizes sync failures.
type ErrorCode string

const (
	// ErrCodeListingFetchFailed aborts the pass: there is nothing to
	// reconcile against.
	ErrCodeListingFetchFailed ErrorCode = "LISTING_FETCH_FAILED"

	// ErrCodeContentFetchFailed fails one entry.
	ErrCodeContentFetchFailed ErrorCode = "CONTENT_FETCH_FAILED"

	// ErrCodeContentInvalid fails one entry whose content did not validate
	// or could not be merged.
	ErrCodeContentInvalid ErrorCode = "CONTENT_INVALID"

	// ErrCodePersistenceFailed means the batched flush failed. Records are
	// updated in memory and the next flush retries.
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"

	// ErrCodeTriggerHookFailed means a trigger side effect failed. The
	// record update stands.
	ErrCodeTriggerHookFailed ErrorCode = "TRIGGER_HOOK_FAILED"
)

// SyncError is a failure observed during a pass.
type SyncError struct {
	Code ErrorCode

	// WorkflowID identifies the affected entry. Empty for pass-wide
	// failures.
	WorkflowID string

	Err error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.WorkflowID != "" {
		return fmt.Sprintf("%s: %v (workflow=%s)", e.Code, e.Err, e.WorkflowID)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

// Unwrap returns the underlying error.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the failure for reports.
func (e *SyncError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Code       ErrorCode `json:"code"`
		WorkflowID string    `json:"workflowId,omitempty"`
		Message    string    `json:"message"`
	}{e.Code, e.WorkflowID, msg})
}

func hasCode(err error, code ErrorCode) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsListingError returns true if err is a listing fetch failure.
func IsListingError(err error) bool {
	return hasCode(err, ErrCodeListingFetchFailed)
}

// IsContentFetchError returns true if err is a content fetch failure.
func IsContentFetchError(err error) bool {
	return hasCode(err, ErrCodeContentFetchFailed)
}

// IsContentInvalidError returns true if err is an invalid content failure.
func IsContentInvalidError(err error) bool {
	return hasCode(err, ErrCodeContentInvalid)
}

// IsPersistenceError returns true if err is a persistence failure.
func IsPersistenceError(err error) bool {
	return hasCode(err, ErrCodePersistenceFailed)
}

// IsTriggerHookError returns true if err is a trigger hook failure.
func IsTriggerHookError(err error) bool {
	return hasCode(err, ErrCodeTriggerHookFailed)
}
