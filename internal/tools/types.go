// Package tools executes agent tool calls against a workspace: file
// operations, shell commands, search, lints and diagram rendering.
package tools

import (
	"fmt"
	"strconv"
)

// Known tool names after normalization.
const (
	ToolReadFile       = "read_file"
	ToolWriteFile      = "write_file"
	ToolDeleteFile     = "delete_file"
	ToolSearchReplace  = "search_replace"
	ToolListDir        = "list_dir"
	ToolFileSearch     = "file_search"
	ToolGrepSearch     = "grep_search"
	ToolCodebaseSearch = "codebase_search"
	ToolRunTerminalCmd = "run_terminal_cmd"
	ToolReadLints      = "read_lints"
	ToolReapply        = "reapply"
	ToolCreateDiagram  = "create_diagram"
)

// toolAliases maps tool names agents use in the wild onto the canonical
// names dispatched by the router.
var toolAliases = map[string]string{
	"edit_file":            ToolWriteFile,
	"create_file":          ToolWriteFile,
	"run_terminal_command": ToolRunTerminalCmd,
}

// NormalizeTool returns the canonical name for a tool, or the input
// unchanged when no alias applies.
func NormalizeTool(name string) string {
	if canonical, ok := toolAliases[name]; ok {
		return canonical
	}
	return name
}

// ToolCall is a single tool invocation parsed from the agent's event
// stream. Immutable once created.
type ToolCall struct {
	CallID  string         `json:"call_id"`
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args"`
	RawTool string         `json:"raw_tool,omitempty"`
}

// ToolResult is the outcome of one tool call. Exactly one of Output and
// Error is meaningful depending on Success. StartLine/EndLine are set
// only for partial file reads.
type ToolResult struct {
	CallID    string         `json:"call_id"`
	Tool      string         `json:"tool"`
	Success   bool           `json:"success"`
	Output    string         `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	ExitCode  *int           `json:"exit_code,omitempty"`
	StartLine int            `json:"start_line,omitempty"`
	EndLine   int            `json:"end_line,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// CallError pairs a failed call with its error message inside a batch.
type CallError struct {
	CallID string `json:"call_id"`
	Error  string `json:"error"`
}

// BatchResult is the outcome of dispatching several tool calls
// concurrently. Every input call ID appears in exactly one of the two
// lists, never both.
type BatchResult struct {
	Results []ToolResult `json:"results"`
	Errors  []CallError  `json:"errors"`
}

// StreamEvent is one item on a running command's output stream. Chunk
// events arrive in the order the process wrote them. The final event
// has Exit set and carries the exit code, nil when the process was
// killed before it could report one; the channel is closed after it.
type StreamEvent struct {
	Chunk    []byte
	Exit     bool
	ExitCode *int
}

// Command is a live shell execution handed to the consumer as soon as
// the process exists and before the first chunk is produced. Kill stops
// the whole process group and may be called at any point. The consumer
// must drain Stream until it closes or the producer stalls.
type Command struct {
	CallID string
	Stream <-chan StreamEvent
	Kill   func() error
}

// ExecuteOptions wires long-running tools to their consumer.
type ExecuteOptions struct {
	// OnCommand receives each spawned command synchronously, before any
	// output is produced, so the consumer can register the kill handle
	// and start draining the stream. Nil discards the stream.
	OnCommand func(cmd *Command)
}

func successResult(call ToolCall, output string) ToolResult {
	return ToolResult{CallID: call.CallID, Tool: call.Tool, Success: true, Output: output}
}

func failureResult(call ToolCall, format string, args ...any) ToolResult {
	return ToolResult{CallID: call.CallID, Tool: call.Tool, Success: false, Error: fmt.Sprintf(format, args...)}
}

// stringArg extracts a string argument, tolerating absent keys.
func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// intArg extracts an integer argument. JSON decoding yields float64 for
// numbers, and some agents send numeric strings.
func intArg(args map[string]any, key string) (int, bool) {
	if args == nil {
		return 0, false
	}
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func boolArg(args map[string]any, key string) bool {
	if args == nil {
		return false
	}
	v, _ := args[key].(bool)
	return v
}

// stringSliceArg extracts a list-of-strings argument.
func stringSliceArg(args map[string]any, key string) []string {
	if args == nil {
		return nil
	}
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
