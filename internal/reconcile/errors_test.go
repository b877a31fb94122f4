package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncError(t *testing.T) {
	cause := errors.New("connection reset")
	err := &SyncError{Code: ErrCodeContentFetchFailed, WorkflowID: "A", Err: cause}

	assert.Equal(t, "CONTENT_FETCH_FAILED: connection reset (workflow=A)", err.Error())
	assert.ErrorIs(t, err, cause)

	passWide := &SyncError{Code: ErrCodePersistenceFailed, Err: cause}
	assert.Equal(t, "PERSISTENCE_FAILED: connection reset", passWide.Error())
}

func TestSyncErrorPredicates(t *testing.T) {
	tests := []struct {
		code ErrorCode
		is   func(error) bool
	}{
		{ErrCodeListingFetchFailed, IsListingError},
		{ErrCodeContentFetchFailed, IsContentFetchError},
		{ErrCodeContentInvalid, IsContentInvalidError},
		{ErrCodePersistenceFailed, IsPersistenceError},
		{ErrCodeTriggerHookFailed, IsTriggerHookError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &SyncError{Code: tt.code, Err: errors.New("x")})
			assert.True(t, tt.is(err))
			for _, other := range tests {
				if other.code != tt.code {
					assert.False(t, other.is(err), "%s matched %s", other.code, tt.code)
				}
			}
		})
	}

	assert.False(t, IsListingError(errors.New("plain")))
	assert.False(t, IsListingError(nil))
}

func TestSyncErrorMarshalJSON(t *testing.T) {
	err := &SyncError{Code: ErrCodeContentInvalid, WorkflowID: "A", Err: errors.New("missing graph")}
	data, mErr := json.Marshal(err)
	require.NoError(t, mErr)
	assert.JSONEq(t, `{"code":"CONTENT_INVALID","workflowId":"A","message":"missing graph"}`, string(data))

	data, mErr = json.Marshal(&SyncError{Code: ErrCodePersistenceFailed})
	require.NoError(t, mErr)
	assert.JSONEq(t, `{"code":"PERSISTENCE_FAILED","message":""}`, string(data))
}

func TestReportJSON(t *testing.T) {
	r := newReport()
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"inserted":[],"updated":[],"skipped":[],"failed":[],"hookFailures":[],"fetches":0}`, string(data))
	assert.False(t, r.Changed())

	r.Updated = append(r.Updated, "A")
	assert.True(t, r.Changed())
}

func TestReportSort(t *testing.T) {
	r := newReport()
	r.Inserted = []string{"c", "a", "b"}
	r.Failed = []*SyncError{{WorkflowID: "z"}, {WorkflowID: ""}, {WorkflowID: "m"}}
	r.sort()

	assert.Equal(t, []string{"a", "b", "c"}, r.Inserted)
	assert.Equal(t, "", r.Failed[0].WorkflowID)
	assert.Equal(t, "m", r.Failed[1].WorkflowID)
	assert.Equal(t, "z", r.Failed[2].WorkflowID)
}
