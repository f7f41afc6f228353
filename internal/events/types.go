// Package events provides event types for the agentbench event system.
package events

// Event types for agent runs
const (
	RunStarted    = "run.started"
	RunOutput     = "run.output"
	RunToolCall   = "run.tool_call"
	RunToolResult = "run.tool_result"
	RunCompleted  = "run.completed"
	RunFailed     = "run.failed"
	RunCancelled  = "run.cancelled"
)

// Event types for previews
const (
	PreviewStarted = "preview.started"
	PreviewStopped = "preview.stopped"
)

// Event types for workspaces
const (
	WorkspaceCreated = "workspace.created"
	WorkspaceDeleted = "workspace.deleted"
)

// RunSubject returns the bus subject carrying run events for a workspace.
func RunSubject(workspaceID string) string {
	return "run." + workspaceID
}

// PreviewSubject returns the bus subject carrying preview events for a workspace.
func PreviewSubject(workspaceID string) string {
	return "preview." + workspaceID
}
