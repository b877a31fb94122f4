package trigger

import (
	"context"
	"log/slog"

	"github.com/roach88/flowsync/internal/workflow"
)

// LogHook is a Hook that only logs. Used by the host binary when no
// execution engine is attached.
type LogHook struct {
	Logger *slog.Logger
}

var _ Hook = LogHook{}

// RegisterTrigger logs the registration.
func (h LogHook) RegisterTrigger(_ context.Context, workflowID string, node workflow.Node) error {
	h.logger().Info("register trigger",
		"workflow_id", workflowID,
		"node_id", node.ID,
		"trigger_type", node.Data["type"])
	return nil
}

// CleanupTriggers logs the teardown.
func (h LogHook) CleanupTriggers(_ context.Context, workflowID string) error {
	h.logger().Info("cleanup triggers", "workflow_id", workflowID)
	return nil
}

func (h LogHook) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
