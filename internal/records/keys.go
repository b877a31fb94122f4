package records

// Durable key names.
const (
	KeyWorkflows       = "workflows"
	KeyFirstTime       = "isFirstTime"
	KeyHostedWorkflows = "hostedWorkflows"
	KeyBackupIDs       = "backupIds"
	KeyPinnedWorkflows = "pinnedWorkflows"
)

// EphemeralKeys returns the per-workflow keys removed when id is deleted.
func EphemeralKeys(id string) []string {
	return []string{"state:" + id, "draft:" + id, "draft-team:" + id}
}
