package run

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentbench/agentbench/internal/tools"
)

func TestParseEvents(t *testing.T) {
	stream := strings.Join([]string{
		`{"type":"output","text":"thinking about the task"}`,
		``,
		`{"type":"tool_call","call_id":"t1","tool":"edit_file","args":{"target_file":"a.go"}}`,
		`npm WARN deprecated something`,
		`{"type":"result","success":true,"text":"all done"}`,
	}, "\n")

	var got []*AgentEvent
	err := ParseEvents(strings.NewReader(stream), func(event *AgentEvent) error {
		got = append(got, event)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, EventOutput, got[0].Type)
	assert.Equal(t, "thinking about the task", got[0].Text)

	assert.Equal(t, EventToolCall, got[1].Type)
	call := got[1].ToolCall()
	assert.Equal(t, "t1", call.CallID)
	assert.Equal(t, tools.ToolWriteFile, call.Tool, "alias is normalized")
	assert.Equal(t, "edit_file", call.RawTool)
	assert.Equal(t, "a.go", call.Args["target_file"])

	// Non-JSON diagnostics become plain output events.
	assert.Equal(t, EventOutput, got[2].Type)
	assert.Equal(t, "npm WARN deprecated something", got[2].Text)

	assert.Equal(t, EventResult, got[3].Type)
	require.NotNil(t, got[3].Success)
	assert.True(t, *got[3].Success)
	assert.Equal(t, "all done", got[3].Text)
}

func TestParseEventsStopsOnHandlerError(t *testing.T) {
	stream := `{"type":"output","text":"one"}` + "\n" + `{"type":"output","text":"two"}` + "\n"

	count := 0
	err := ParseEvents(strings.NewReader(stream), func(event *AgentEvent) error {
		count++
		return assert.AnError
	})
	require.Error(t, err)
	assert.Equal(t, 1, count)
}

func TestEncodeToolResult(t *testing.T) {
	line, err := EncodeToolResult(tools.ToolResult{CallID: "t1", Tool: "list_dir", Success: true, Output: "ok"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(line), "\n"))
	assert.Contains(t, string(line), `"call_id":"t1"`)
	assert.Contains(t, string(line), `"success":true`)
}
