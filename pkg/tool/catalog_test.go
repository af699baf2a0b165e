package tool

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wilhg/agentchat/pkg/agent"
)

type fakeSession struct {
	model                     string
	prompt, completion, total int
}

func (f fakeSession) ModelName() string { return f.model }
func (f fakeSession) ContextUsage() (int, int, int) {
	return f.prompt, f.completion, f.total
}

func testInvocation(t *testing.T) Invocation {
	t.Helper()
	s, err := agent.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return Invocation{Agents: s, Session: fakeSession{model: "openai/gpt-4o-mini"}}
}

func TestBuiltinCatalogComplete(t *testing.T) {
	c, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	want := []string{
		"create_agent", "modify_agent", "delete_agent", "list_agents", "get_agent_details",
		"read_file", "write_file", "list_files", "delete_file",
		"exec_python", "exec_shell",
		"web_search", "web_fetch",
		"get_context_info",
	}
	for _, name := range want {
		if !c.Has(name) {
			t.Fatalf("catalog missing %q", name)
		}
	}
	if got := len(c.Names()); got != len(want) {
		t.Fatalf("catalog has %d tools, want %d", got, len(want))
	}
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	a, err := newReadFileTool()
	if err != nil {
		t.Fatalf("newReadFileTool: %v", err)
	}
	if _, err := NewCatalog(a, a); err == nil {
		t.Fatalf("expected duplicate name error")
	}
}

func TestFileToolsRoundTrip(t *testing.T) {
	c, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	inv := testInvocation(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")

	out, err := c.SafeInvoke(context.Background(), "write_file", inv, map[string]any{"path": path, "content": "hello"})
	if err != nil {
		t.Fatalf("write_file: %v", err)
	}
	if !strings.Contains(out, "5 bytes") {
		t.Fatalf("write result=%q", out)
	}

	out, err = c.SafeInvoke(context.Background(), "read_file", inv, map[string]any{"path": path})
	if err != nil {
		t.Fatalf("read_file: %v", err)
	}
	if out != "hello" {
		t.Fatalf("read result=%q", out)
	}

	out, err = c.SafeInvoke(context.Background(), "list_files", inv, map[string]any{"path": dir})
	if err != nil {
		t.Fatalf("list_files: %v", err)
	}
	if !strings.Contains(out, "note.txt") {
		t.Fatalf("list result=%q", out)
	}

	if _, err := c.SafeInvoke(context.Background(), "delete_file", inv, map[string]any{"path": path}); err != nil {
		t.Fatalf("delete_file: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file still exists")
	}
}

func TestReadFileMissing(t *testing.T) {
	rt, err := newReadFileTool()
	if err != nil {
		t.Fatalf("newReadFileTool: %v", err)
	}
	out, err := rt.Invoke(context.Background(), Invocation{}, map[string]any{"path": "/no/such/file"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(out, "not found") {
		t.Fatalf("result=%q", out)
	}
}

func TestSafeInvokeValidatesInput(t *testing.T) {
	rt, err := newReadFileTool()
	if err != nil {
		t.Fatalf("newReadFileTool: %v", err)
	}
	c, err := NewCatalog(rt)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	_, err = c.SafeInvoke(context.Background(), "read_file", Invocation{}, map[string]any{})
	if err == nil {
		t.Fatalf("expected validation error for missing path")
	}
}

func TestSafeInvokeUnknownTool(t *testing.T) {
	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	if _, err := c.SafeInvoke(context.Background(), "ghost", Invocation{}, nil); err == nil {
		t.Fatalf("expected error for unknown tool")
	}
}

func TestAgentToolsLifecycle(t *testing.T) {
	c, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	inv := testInvocation(t)
	ctx := context.Background()

	out, err := c.SafeInvoke(ctx, "create_agent", inv, map[string]any{
		"name":         "scribe",
		"description":  "writes things down",
		"capabilities": []string{"file-operations"},
	})
	if err != nil {
		t.Fatalf("create_agent: %v", err)
	}
	if !strings.Contains(out, "Created agent 'scribe'") {
		t.Fatalf("create result=%q", out)
	}

	// Duplicate create refused.
	out, err = c.SafeInvoke(ctx, "create_agent", inv, map[string]any{"name": "scribe", "description": "dup"})
	if err != nil || !strings.Contains(out, "already exists") {
		t.Fatalf("dup create: out=%q err=%v", out, err)
	}

	out, err = c.SafeInvoke(ctx, "modify_agent", inv, map[string]any{"name": "scribe", "description": "updated"})
	if err != nil || !strings.Contains(out, "Updated agent") {
		t.Fatalf("modify: out=%q err=%v", out, err)
	}
	got, err := inv.Agents.Load("scribe")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Description != "updated" {
		t.Fatalf("description=%q", got.Description)
	}
	if len(got.Capabilities) != 1 || got.Capabilities[0] != "file-operations" {
		t.Fatalf("modify clobbered capabilities: %v", got.Capabilities)
	}

	out, err = c.SafeInvoke(ctx, "get_agent_details", inv, map[string]any{"name": "scribe"})
	if err != nil || !strings.Contains(out, "Agent: scribe") {
		t.Fatalf("details: out=%q err=%v", out, err)
	}

	out, err = c.SafeInvoke(ctx, "list_agents", inv, map[string]any{})
	if err != nil || !strings.Contains(out, "scribe") {
		t.Fatalf("list: out=%q err=%v", out, err)
	}

	out, err = c.SafeInvoke(ctx, "delete_agent", inv, map[string]any{"name": "scribe"})
	if err != nil || !strings.Contains(out, "Deleted agent") {
		t.Fatalf("delete: out=%q err=%v", out, err)
	}
}

func TestDeleteAgentBuilderRefused(t *testing.T) {
	inv := testInvocation(t)
	if _, err := inv.Agents.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	dt, err := newDeleteAgentTool()
	if err != nil {
		t.Fatalf("newDeleteAgentTool: %v", err)
	}
	out, err := dt.Invoke(context.Background(), inv, map[string]any{"name": agent.BuilderName})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(out, "Cannot delete") {
		t.Fatalf("result=%q", out)
	}
	if !inv.Agents.Exists(agent.BuilderName) {
		t.Fatalf("agent-builder was deleted")
	}
}

func TestContextInfo(t *testing.T) {
	ct, err := newContextInfoTool()
	if err != nil {
		t.Fatalf("newContextInfoTool: %v", err)
	}
	inv := Invocation{Session: fakeSession{model: "openai/gpt-4o-mini", prompt: 900, completion: 100, total: 1000}}
	out, err := ct.Invoke(context.Background(), inv, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	for _, want := range []string{"128000", "Prompt tokens: 900", "Total tokens: 1000", "Remaining: 127000"} {
		if !strings.Contains(out, want) {
			t.Fatalf("result missing %q:\n%s", want, out)
		}
	}

	out, err = ct.Invoke(context.Background(), Invocation{Session: fakeSession{model: "unknown/model"}}, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(out, "No usage data") {
		t.Fatalf("result=%q", out)
	}
}

func TestWebSearchPlaceholder(t *testing.T) {
	wt, err := newWebSearchTool()
	if err != nil {
		t.Fatalf("newWebSearchTool: %v", err)
	}
	out, err := wt.Invoke(context.Background(), Invocation{}, map[string]any{"query": "golang"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(out, "not yet implemented") {
		t.Fatalf("result=%q", out)
	}
}
