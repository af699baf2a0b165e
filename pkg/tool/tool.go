// Package tool defines the callable tool model: descriptors with JSON
// schemas built once at startup, an immutable catalog, and the typed
// invocation context handed to every tool.
package tool

import (
	"context"
	"fmt"
	"sort"

	"github.com/wilhg/agentchat/pkg/agent"
	"github.com/wilhg/agentchat/pkg/errmodel"
)

// Param describes one advertised tool parameter, in declaration order.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Descriptor declares the static interface of a tool. InputSchema is a
// JSON Schema (draft 2020-12) derived from Params exactly once at startup.
type Descriptor struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Params      []Param `json:"params,omitempty"`
	InputSchema []byte  `json:"input_schema"`
}

// SessionInfo exposes the live session facts tools may report on.
type SessionInfo interface {
	// ModelName returns the model identifier driving the session.
	ModelName() string
	// ContextUsage returns cumulative token counts for the session.
	ContextUsage() (promptTokens, completionTokens, totalTokens int)
}

// Invocation carries the explicit context a tool may draw on. Tools take
// what they need from it; nothing is injected by parameter-name scanning.
type Invocation struct {
	Agents  *agent.Store
	Session SessionInfo
}

// Tool is a callable unit exposed to the model. Results are plain text
// fed back into the conversation.
type Tool interface {
	Describe() Descriptor
	Invoke(ctx context.Context, inv Invocation, args map[string]any) (string, error)
}

// Catalog is an immutable name-to-tool table, built once and shared
// read-only across sessions. Each entry carries its schema compiled at
// build time so invocations never recompile.
type Catalog struct {
	byName map[string]catalogEntry
}

type catalogEntry struct {
	tool   Tool
	schema *Schema
}

// NewCatalog builds a catalog, rejecting duplicate or empty names and
// invalid input schemas.
func NewCatalog(tools ...Tool) (*Catalog, error) {
	byName := make(map[string]catalogEntry, len(tools))
	for _, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("tool is nil")
		}
		d := t.Describe()
		if d.Name == "" {
			return nil, fmt.Errorf("tool name is empty")
		}
		if _, exists := byName[d.Name]; exists {
			return nil, fmt.Errorf("tool %q already in catalog", d.Name)
		}
		sch, err := CompileSchema(d.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %q: invalid input schema: %w", d.Name, err)
		}
		byName[d.Name] = catalogEntry{tool: t, schema: sch}
	}
	return &Catalog{byName: byName}, nil
}

// Has reports whether a tool name is in the catalog.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Lookup returns a tool by name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	e, ok := c.byName[name]
	return e.tool, ok
}

// Names returns all tool names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.byName))
	for n := range c.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SafeInvoke validates args against the tool's compiled schema and
// invokes it. Validation failures come back as validation errors,
// never panics.
func (c *Catalog) SafeInvoke(ctx context.Context, name string, inv Invocation, args map[string]any) (string, error) {
	e, ok := c.byName[name]
	if !ok {
		return "", errmodel.Validation("bad_tool", fmt.Sprintf("tool %q not in catalog", name), nil)
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := e.schema.Validate(args); err != nil {
		return "", errmodel.Validation("invalid_input", "tool input validation failed", map[string]any{"tool": name, "error": err.Error()})
	}
	return e.tool.Invoke(ctx, inv, args)
}
