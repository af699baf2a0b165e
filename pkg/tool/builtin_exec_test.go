package tool

import (
	"context"
	"strings"
	"testing"
)

func TestExecShell(t *testing.T) {
	et, err := newExecShellTool()
	if err != nil {
		t.Fatalf("newExecShellTool: %v", err)
	}
	out, err := et.Invoke(context.Background(), Invocation{}, map[string]any{"command": "echo hello"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(out, "hello") {
		t.Fatalf("result=%q", out)
	}
}

func TestExecShellStderr(t *testing.T) {
	et, err := newExecShellTool()
	if err != nil {
		t.Fatalf("newExecShellTool: %v", err)
	}
	out, err := et.Invoke(context.Background(), Invocation{}, map[string]any{"command": "echo oops >&2"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(out, "Errors:") || !strings.Contains(out, "oops") {
		t.Fatalf("result=%q", out)
	}
}

func TestExecShellTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("timeout test sleeps past the 10s limit")
	}
	et, err := newExecShellTool()
	if err != nil {
		t.Fatalf("newExecShellTool: %v", err)
	}
	out, err := et.Invoke(context.Background(), Invocation{}, map[string]any{"command": "sleep 30"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(out, "timed out") {
		t.Fatalf("result=%q", out)
	}
}
