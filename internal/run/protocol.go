// Package run drives one external coding-agent process per run request,
// parses its event stream and dispatches the tool calls it emits.
package run

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/agentbench/agentbench/internal/tools"
)

// Agent stream event types. The agent emits newline-delimited JSON on
// stdout; tool results are acknowledged as JSON lines on its stdin.
const (
	EventOutput   = "output"
	EventToolCall = "tool_call"
	EventResult   = "result"
)

// AgentEvent is one line of the agent's structured output stream.
type AgentEvent struct {
	Type string `json:"type"`

	// Text carries narrative output for "output" events and the final
	// message for "result" events.
	Text string `json:"text,omitempty"`

	// Tool-call fields.
	CallID string         `json:"call_id,omitempty"`
	Tool   string         `json:"tool,omitempty"`
	Args   map[string]any `json:"args,omitempty"`

	// Success is set on "result" events.
	Success *bool `json:"success,omitempty"`
}

// ToolCall converts a tool_call event into the router's call type.
func (e *AgentEvent) ToolCall() tools.ToolCall {
	return tools.ToolCall{
		CallID:  e.CallID,
		Tool:    tools.NormalizeTool(e.Tool),
		Args:    e.Args,
		RawTool: e.Tool,
	}
}

// maxLineSize bounds a single stream line. Agents embed whole file
// contents in events, so lines can get large.
const maxLineSize = 10 * 1024 * 1024

// ParseEvents reads newline-delimited JSON events until EOF, invoking fn
// for each one. Lines that are not valid JSON are surfaced as plain
// output events rather than aborting the stream, agents mix diagnostics
// into stdout. A non-nil error from fn stops parsing.
func ParseEvents(r io.Reader, fn func(event *AgentEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event AgentEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil || event.Type == "" {
			event = AgentEvent{Type: EventOutput, Text: line}
		}
		if err := fn(&event); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read agent stream: %w", err)
	}
	return nil
}

// EncodeToolResult renders a tool result as the single JSON line written
// back to the agent's stdin.
func EncodeToolResult(result tools.ToolResult) ([]byte, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return append(data, '\n'), nil
}
