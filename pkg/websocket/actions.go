package websocket

// Action constants for WebSocket messages
const (
	// Health
	ActionHealthCheck = "health.check"

	// Run actions (client -> server)
	ActionRunStart  = "run.start"
	ActionRunCancel = "run.cancel"

	// Command actions (client -> server)
	ActionCommandKill = "command.kill"

	// Subscription actions
	ActionWorkspaceSubscribe   = "workspace.subscribe"
	ActionWorkspaceUnsubscribe = "workspace.unsubscribe"

	// Run notifications (server -> client)
	ActionRunOutput     = "run.output"
	ActionRunToolCall   = "run.tool_call"
	ActionRunToolResult = "run.tool_result"
	ActionRunCompleted  = "run.completed"
	ActionRunFailed     = "run.failed"
	ActionRunCancelled  = "run.cancelled"

	// Command notifications (server -> client)
	ActionCommandOutput = "command.output"
	ActionCommandExit   = "command.exit"
)

// Error codes
const (
	ErrorCodeBadRequest    = "BAD_REQUEST"
	ErrorCodeNotFound      = "NOT_FOUND"
	ErrorCodeInternalError = "INTERNAL_ERROR"
	ErrorCodeValidation    = "VALIDATION_ERROR"
	ErrorCodeUnknownAction = "UNKNOWN_ACTION"
	ErrorCodeRunActive     = "RUN_IN_PROGRESS"
)
