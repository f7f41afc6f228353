package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync/atomic"

	"github.com/creack/pty"
)

// runTerminalCmd spawns a shell command in the workspace directory and
// streams its combined output. The consumer gets the live command (kill
// handle plus event channel) before the first chunk; the stream carries
// every chunk in write order and ends with one exit event before the
// channel closes.
func (r *Router) runTerminalCmd(ctx context.Context, workspaceID string, call ToolCall, opts ExecuteOptions) ToolResult {
	command := stringArg(call.Args, "command")
	if command == "" {
		return failureResult(call, "run_terminal_cmd requires a command argument")
	}
	root, err := r.root(ctx, workspaceID)
	if err != nil {
		return failureResult(call, "%v", err)
	}

	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Dir = root

	var reader io.ReadCloser
	if r.streamMode == StreamModePty {
		// pty.Start puts the command in its own session, which also
		// gives it a fresh process group for killProcessGroup.
		f, err := pty.Start(cmd)
		if err != nil {
			return failureResult(call, "failed to spawn command: %v", err)
		}
		reader = f
	} else {
		setProcGroup(cmd)
		// A single pipe shared by stdout and stderr keeps chunks in the
		// order the process wrote them.
		pr, pw, err := os.Pipe()
		if err != nil {
			return failureResult(call, "failed to create output pipe: %v", err)
		}
		cmd.Stdout = pw
		cmd.Stderr = pw
		if err := cmd.Start(); err != nil {
			_ = pr.Close()
			_ = pw.Close()
			return failureResult(call, "failed to spawn command: %v", err)
		}
		_ = pw.Close()
		reader = pr
	}

	var killed atomic.Bool
	kill := func() error {
		killed.Store(true)
		return killProcessGroup(cmd.Process.Pid)
	}

	var stream chan StreamEvent
	if opts.OnCommand != nil {
		stream = make(chan StreamEvent)
		opts.OnCommand(&Command{CallID: call.CallID, Stream: stream, Kill: kill})
	}

	waitDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = kill()
		case <-waitDone:
		}
	}()

	var capture bytes.Buffer
	buf := make([]byte, 32*1024)
	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			capture.Write(chunk)
			if stream != nil {
				stream <- StreamEvent{Chunk: chunk}
			}
		}
		if readErr != nil {
			// A pty returns EIO once the child side closes, treat any
			// read error as end of stream.
			break
		}
	}
	_ = reader.Close()
	waitErr := cmd.Wait()
	close(waitDone)

	var exitCode *int
	if code := cmd.ProcessState.ExitCode(); code >= 0 && !killed.Load() {
		exitCode = &code
	}
	if stream != nil {
		stream <- StreamEvent{Exit: true, ExitCode: exitCode}
		close(stream)
	}

	result := ToolResult{
		CallID:   call.CallID,
		Tool:     call.Tool,
		Success:  waitErr == nil,
		Output:   capture.String(),
		ExitCode: exitCode,
	}
	if waitErr != nil {
		if killed.Load() {
			result.Error = "command was killed before completion"
		} else {
			result.Error = fmt.Sprintf("command failed: %v", waitErr)
		}
	}
	return result
}
