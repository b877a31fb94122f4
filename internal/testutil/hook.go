package testutil

import (
	"context"
	"sync"

	"github.com/roach88/flowsync/internal/workflow"
)

// Registration is one recorded RegisterTrigger call.
type Registration struct {
	WorkflowID string
	Node       workflow.Node
}

// RecordingHook records trigger hook calls and can fail on demand.
//
// Implements trigger.Hook.
type RecordingHook struct {
	mu         sync.Mutex
	registered []Registration
	cleaned    []string

	// Fail maps a workflow id to the error both hook calls return for it.
	Fail map[string]error
}

// NewRecordingHook creates an empty recorder.
func NewRecordingHook() *RecordingHook {
	return &RecordingHook{Fail: make(map[string]error)}
}

// RegisterTrigger records the call.
func (h *RecordingHook) RegisterTrigger(_ context.Context, workflowID string, node workflow.Node) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registered = append(h.registered, Registration{WorkflowID: workflowID, Node: node})
	return h.Fail[workflowID]
}

// CleanupTriggers records the call.
func (h *RecordingHook) CleanupTriggers(_ context.Context, workflowID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleaned = append(h.cleaned, workflowID)
	return h.Fail[workflowID]
}

// Registered returns the RegisterTrigger calls in order.
func (h *RecordingHook) Registered() []Registration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Registration(nil), h.registered...)
}

// Cleaned returns the workflow ids passed to CleanupTriggers in order.
func (h *RecordingHook) Cleaned() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.cleaned...)
}

// Reset forgets recorded calls.
func (h *RecordingHook) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registered = nil
	h.cleaned = nil
}
