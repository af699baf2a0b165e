package mcpserver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wilhg/agentchat/pkg/agent"
	"github.com/wilhg/agentchat/pkg/tool"
)

type fakeSession struct{ model string }

func (f fakeSession) ModelName() string             { return f.model }
func (f fakeSession) ContextUsage() (int, int, int) { return 0, 0, 0 }

// newLoopback wires a registered server and a client session over an
// in-memory transport pair.
func newLoopback(t *testing.T, granted map[string]bool) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	catalog, err := tool.Builtin()
	if err != nil {
		t.Fatalf("tool.Builtin: %v", err)
	}
	agents, err := agent.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("agent.NewStore: %v", err)
	}
	inv := tool.Invocation{Agents: agents, Session: fakeSession{model: "openai/gpt-4o-mini"}}

	srv := New("agentchat-test", "v0.0.1")
	if err := srv.RegisterCatalog(catalog, granted, inv); err != nil {
		t.Fatalf("RegisterCatalog: %v", err)
	}

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverTransport)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "loopback", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func TestListToolsHonorsGrants(t *testing.T) {
	cs := newLoopback(t, map[string]bool{"read_file": true, "get_context_info": true})

	res, err := cs.ListTools(context.Background(), &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	names := map[string]bool{}
	for _, tl := range res.Tools {
		names[tl.Name] = true
	}
	if len(names) != 2 || !names["read_file"] || !names["get_context_info"] {
		t.Fatalf("tools=%v", names)
	}
}

func TestCallToolRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("hello over the wire"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cs := newLoopback(t, map[string]bool{"read_file": true})
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "read_file",
		Arguments: map[string]any{"path": path},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %+v", res.Content)
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok || text.Text != "hello over the wire" {
		t.Fatalf("content=%+v", res.Content)
	}
}

func TestCallToolRejectsBadInput(t *testing.T) {
	cs := newLoopback(t, map[string]bool{"read_file": true})

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "read_file",
		Arguments: map[string]any{},
	})
	if err == nil && !res.IsError {
		t.Fatalf("expected failure for missing path, got %+v", res.Content)
	}
}

func TestUngrantedToolNotCallable(t *testing.T) {
	cs := newLoopback(t, map[string]bool{"read_file": true})

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "write_file",
		Arguments: map[string]any{"path": "x", "content": "y"},
	})
	if err == nil && !res.IsError {
		t.Fatalf("expected failure for unregistered tool, got %+v", res.Content)
	}
}
