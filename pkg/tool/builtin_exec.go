package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// execTimeout bounds every code-execution tool run.
const execTimeout = 10 * time.Second

const execPythonDoc = `Execute Python code in an isolated subprocess with 10-second timeout.

Args:
    code: Python code to execute (runs in fresh subprocess, no state persistence)
`

type execPythonArgs struct {
	Code string `json:"code"`
}

type execPythonTool struct{ desc Descriptor }

func newExecPythonTool() (Tool, error) {
	d, err := BuildDescriptor("exec_python", execPythonDoc, execPythonArgs{})
	if err != nil {
		return nil, err
	}
	return &execPythonTool{desc: d}, nil
}

func (t *execPythonTool) Describe() Descriptor { return t.desc }

func (t *execPythonTool) Invoke(ctx context.Context, _ Invocation, args map[string]any) (string, error) {
	var a execPythonArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	out, timedOut := runCommand(ctx, "python3", "-c", a.Code)
	if timedOut {
		return "Error: Code execution timed out (10s limit)", nil
	}
	if out == "" {
		return "Code executed (no output)", nil
	}
	return out, nil
}

const execShellDoc = `Execute a shell command with 10-second timeout.

Args:
    command: Shell command to execute (use with caution - has full shell access)
`

type execShellArgs struct {
	Command string `json:"command"`
}

type execShellTool struct{ desc Descriptor }

func newExecShellTool() (Tool, error) {
	d, err := BuildDescriptor("exec_shell", execShellDoc, execShellArgs{})
	if err != nil {
		return nil, err
	}
	return &execShellTool{desc: d}, nil
}

func (t *execShellTool) Describe() Descriptor { return t.desc }

func (t *execShellTool) Invoke(ctx context.Context, _ Invocation, args map[string]any) (string, error) {
	var a execShellArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	out, timedOut := runCommand(ctx, "/bin/sh", "-c", a.Command)
	if timedOut {
		return "Error: Command execution timed out (10s limit)", nil
	}
	if out == "" {
		return "Command executed (no output)", nil
	}
	return out, nil
}

// runCommand executes name with args, capturing stdout and stderr. Stderr
// is appended under an "Errors:" header when present, matching what the
// model expects to see from failed runs.
func runCommand(ctx context.Context, name string, args ...string) (output string, timedOut bool) {
	ctx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", true
	}
	out := stdout.String()
	if stderr.Len() > 0 {
		out += fmt.Sprintf("\nErrors:\n%s", stderr.String())
	} else if err != nil && out == "" {
		out = fmt.Sprintf("\nErrors:\n%v", err)
	}
	return out, false
}
