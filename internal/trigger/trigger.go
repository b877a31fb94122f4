package trigger

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/flowsync/internal/workflow"
)

// Hook registers and tears down background triggers. Implemented by the
// host's execution engine.
type Hook interface {
	RegisterTrigger(ctx context.Context, workflowID string, node workflow.Node) error
	CleanupTriggers(ctx context.Context, workflowID string) error
}

// Kind is what a transition asks the hook to do.
type Kind int

const (
	// Cleanup tears down every trigger of the workflow.
	Cleanup Kind = iota

	// Register registers the workflow's trigger node.
	Register
)

// String returns the kind name.
func (k Kind) String() string {
	if k == Register {
		return "register"
	}
	return "cleanup"
}

// Transition is a pending trigger side effect for one workflow.
type Transition struct {
	WorkflowID string
	Kind       Kind

	// Node is the trigger node to register. Nil for Cleanup, and for
	// Register when the record has no trigger node.
	Node *workflow.Node
}

// Diff returns the transition implied by a record going from prev to next.
// ok is false when the enabled state did not change.
func Diff(prev, next workflow.Record) (t Transition, ok bool) {
	if prev.IsDisabled == next.IsDisabled {
		return Transition{}, false
	}
	if next.IsDisabled {
		return Transition{WorkflowID: next.ID, Kind: Cleanup}, true
	}
	t = Transition{WorkflowID: next.ID, Kind: Register}
	if node, found := next.TriggerNode(); found {
		t.Node = &node
	}
	return t, true
}

// Teardown returns the cleanup transition for a deleted workflow.
func Teardown(workflowID string) Transition {
	return Transition{WorkflowID: workflowID, Kind: Cleanup}
}

// HookError reports a failed hook call for one workflow.
type HookError struct {
	WorkflowID string
	Kind       Kind
	Err        error
}

// Error implements the error interface.
func (e *HookError) Error() string {
	return fmt.Sprintf("trigger %s failed (workflow=%s): %v", e.Kind, e.WorkflowID, e.Err)
}

// Unwrap returns the hook's error.
func (e *HookError) Unwrap() error {
	return e.Err
}

// IsHookError returns true if err is or wraps a *HookError.
func IsHookError(err error) bool {
	var he *HookError
	return errors.As(err, &he)
}
