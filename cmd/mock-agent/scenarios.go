package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Scenarios are selected by prompt prefix so tests can drive specific
// event sequences with deterministic timing:
//
//	error: <message>   emit output then a failing result
//	tool:read <path>   read a file through the backend
//	tool:write <path>  write a marker file through the backend
//	tool:exec <cmd>    run a shell command through the backend
//	slow:<n>           n output events with 100ms delays then success
//
// Any other prompt produces a short narrated echo with a success result.
func runScenario(enc *json.Encoder, scanner *bufio.Scanner, opts options) error {
	prompt := strings.TrimSpace(opts.prompt)
	switch {
	case strings.HasPrefix(prompt, "error:"):
		return scenarioError(enc, strings.TrimSpace(strings.TrimPrefix(prompt, "error:")))
	case strings.HasPrefix(prompt, "tool:read "):
		return scenarioTool(enc, scanner, "read_file",
			map[string]any{"target_file": strings.TrimSpace(strings.TrimPrefix(prompt, "tool:read "))})
	case strings.HasPrefix(prompt, "tool:write "):
		return scenarioTool(enc, scanner, "write_file", map[string]any{
			"target_file": strings.TrimSpace(strings.TrimPrefix(prompt, "tool:write ")),
			"code_edit":   "mock agent was here\n",
		})
	case strings.HasPrefix(prompt, "tool:exec "):
		return scenarioTool(enc, scanner, "run_terminal_cmd",
			map[string]any{"command": strings.TrimSpace(strings.TrimPrefix(prompt, "tool:exec "))})
	case strings.HasPrefix(prompt, "slow:"):
		return scenarioSlow(enc, strings.TrimPrefix(prompt, "slow:"))
	default:
		return scenarioEcho(enc, opts)
	}
}

func emit(enc *json.Encoder, event map[string]any) error {
	return enc.Encode(event)
}

func emitOutput(enc *json.Encoder, text string) error {
	return emit(enc, map[string]any{"type": "output", "text": text})
}

func emitResult(enc *json.Encoder, success bool, text string) error {
	return emit(enc, map[string]any{"type": "result", "success": success, "text": text})
}

// scenarioEcho narrates the prompt back and succeeds.
func scenarioEcho(enc *json.Encoder, opts options) error {
	if err := emitOutput(enc, "thinking about: "+opts.prompt); err != nil {
		return err
	}
	if err := emitOutput(enc, "model "+opts.model+" has no further questions"); err != nil {
		return err
	}
	return emitResult(enc, true, "echo: "+opts.prompt)
}

// scenarioError fails with the given message.
func scenarioError(enc *json.Encoder, message string) error {
	if message == "" {
		message = "simulated agent failure"
	}
	if err := emitOutput(enc, "something went wrong"); err != nil {
		return err
	}
	return emitResult(enc, false, message)
}

// scenarioSlow emits n output events 100ms apart. The count defaults
// to 5, long enough for cancellation tests to land mid-stream.
func scenarioSlow(enc *json.Encoder, countArg string) error {
	count := 5
	if n, err := fmt.Sscanf(countArg, "%d", &count); err != nil || n != 1 {
		count = 5
	}
	for i := 1; i <= count; i++ {
		if err := emitOutput(enc, fmt.Sprintf("still working (%d/%d)", i, count)); err != nil {
			return err
		}
		time.Sleep(100 * time.Millisecond)
	}
	return emitResult(enc, true, "done after delays")
}

// scenarioTool emits one tool call, waits for the backend's result line
// on stdin when in structured mode, then succeeds or fails with it.
func scenarioTool(enc *json.Encoder, scanner *bufio.Scanner, tool string, args map[string]any) error {
	callID := fmt.Sprintf("mock-call-%d", os.Getpid())
	if err := emit(enc, map[string]any{
		"type":    "tool_call",
		"call_id": callID,
		"tool":    tool,
		"args":    args,
	}); err != nil {
		return err
	}

	if scanner == nil {
		return emitResult(enc, true, "tool call emitted, no result channel")
	}

	result, err := readToolResult(scanner, callID)
	if err != nil {
		return err
	}
	if !result.Success {
		if err := emitOutput(enc, "tool failed: "+result.Error); err != nil {
			return err
		}
		return emitResult(enc, false, tool+" failed")
	}
	if err := emitOutput(enc, "tool output: "+firstLine(result.Output)); err != nil {
		return err
	}
	return emitResult(enc, true, tool+" succeeded")
}

// toolResultLine mirrors the JSON line the backend writes to agent stdin.
type toolResultLine struct {
	CallID  string `json:"call_id"`
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Error   string `json:"error"`
}

func readToolResult(scanner *bufio.Scanner, callID string) (*toolResultLine, error) {
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var result toolResultLine
		if err := json.Unmarshal([]byte(line), &result); err != nil {
			continue
		}
		if result.CallID == callID {
			return &result, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading tool result: %w", err)
	}
	return nil, fmt.Errorf("stdin closed before tool result for %s", callID)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
