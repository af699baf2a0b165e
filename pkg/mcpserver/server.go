// Package mcpserver exports the tool catalog over the Model Context
// Protocol, so external MCP clients can call the same tools the chat
// loop dispatches.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	mcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wilhg/agentchat/pkg/tool"
)

// Server speaks MCP on behalf of a tool catalog.
type Server struct {
	srv *mcp.Server
}

// New creates a server advertising name and version during the MCP
// handshake.
func New(name, version string) *Server {
	if name == "" {
		name = "agentchat"
	}
	return &Server{srv: mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)}
}

// RegisterCatalog exports the granted subset of the catalog. Ungranted
// tools are never registered, so clients cannot list or call them.
// Results come back as a single text payload, matching the chat tool
// protocol.
func (s *Server) RegisterCatalog(catalog *tool.Catalog, granted map[string]bool, inv tool.Invocation) error {
	for _, name := range catalog.Names() {
		if !granted[name] {
			continue
		}
		t, ok := catalog.Lookup(name)
		if !ok {
			continue
		}
		desc := t.Describe()
		var schema *jsonschema.Schema
		if len(desc.InputSchema) > 0 {
			schema = new(jsonschema.Schema)
			if err := json.Unmarshal(desc.InputSchema, schema); err != nil {
				return fmt.Errorf("tool %q: input schema: %w", name, err)
			}
		}
		mcp.AddTool(s.srv, &mcp.Tool{Name: desc.Name, Description: desc.Description, InputSchema: schema},
			func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
				out, err := catalog.SafeInvoke(ctx, name, inv, args)
				if err != nil {
					return nil, nil, err
				}
				return &mcp.CallToolResult{
					Content: []mcp.Content{&mcp.TextContent{Text: out}},
				}, nil, nil
			})
	}
	return nil
}

// Serve speaks MCP over stdin/stdout until the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	return s.srv.Run(ctx, &mcp.StdioTransport{})
}

// Connect binds the server to a transport and returns the live session.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.srv.Connect(ctx, t, nil)
}
