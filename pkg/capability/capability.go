// Package capability defines named tool bundles and the prompt text that
// accompanies them. A registry is built once at startup and injected into
// each session; it is never mutated afterwards.
package capability

import (
	"strings"
)

// ContextInfoTool is granted to every session regardless of capabilities.
const ContextInfoTool = "get_context_info"

// Capability grants access to a fixed set of tools and contributes a
// prompt addendum describing them.
type Capability struct {
	Name           string
	Description    string
	Tools          []string
	PromptAddendum string
}

// ToolSet answers membership questions for a tool catalog.
type ToolSet interface {
	Has(name string) bool
}

// Registry is an immutable capability lookup table.
type Registry struct {
	byName map[string]Capability
}

// NewRegistry builds a registry from the given capabilities.
func NewRegistry(caps ...Capability) *Registry {
	byName := make(map[string]Capability, len(caps))
	for _, c := range caps {
		byName[c.Name] = c
	}
	return &Registry{byName: byName}
}

// Lookup returns a capability by name.
func (r *Registry) Lookup(name string) (Capability, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// ResolveGrantedTools unions the tool names of the granted capabilities,
// keeps only names present in the catalog, and always includes the
// context-info tool. Unknown capability names are ignored; forward
// compatibility with capabilities this build does not know about.
// The result preserves grant order and contains no duplicates.
func (r *Registry) ResolveGrantedTools(capNames []string, catalog ToolSet) []string {
	seen := map[string]bool{}
	var granted []string
	add := func(name string) {
		if !seen[name] && catalog.Has(name) {
			seen[name] = true
			granted = append(granted, name)
		}
	}
	for _, capName := range capNames {
		c, ok := r.byName[capName]
		if !ok {
			continue
		}
		for _, t := range c.Tools {
			add(t)
		}
	}
	add(ContextInfoTool)
	return granted
}

// ComposeSystemPrompt joins the agent's base prompt with the addenda of
// its granted capabilities, in grant order, blank-line separated.
func (r *Registry) ComposeSystemPrompt(base string, capNames []string) string {
	var parts []string
	if base != "" {
		parts = append(parts, base)
	}
	for _, capName := range capNames {
		if c, ok := r.byName[capName]; ok {
			parts = append(parts, c.PromptAddendum)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Builtin returns the standard capability set.
func Builtin() *Registry {
	return NewRegistry(
		Capability{
			Name:        "agent-creation",
			Description: "Create and modify agent definitions",
			Tools:       []string{"create_agent", "modify_agent", "delete_agent", "list_agents", "get_agent_details"},
			PromptAddendum: "You can create new agents by specifying their name, description, and capabilities. " +
				"New agents should have minimal capabilities by default - only add what they truly need. " +
				"Use the create_agent tool to create new agents as JSON files.\n\n" +
				"Available capabilities to grant agents:\n" +
				"- agent-creation: Create and modify other agents\n" +
				"- file-operations: Read and write files\n" +
				"- code-execution: Execute Python and shell commands\n" +
				"- web-access: Search and fetch web content\n\n" +
				"Most agents should start with NO capabilities and just use the language model for chat.\n\n" +
				"IMPORTANT: These tools only manage agent definition files. You CANNOT switch to or run " +
				"other agents from within this chat session. If the user wants to use a different agent, " +
				"they must exit this session and start a new one with that agent.",
		},
		Capability{
			Name:        "file-operations",
			Description: "Read and write files on the local system",
			Tools:       []string{"read_file", "write_file", "list_files", "delete_file"},
			PromptAddendum: "You can read and write files using the file operation tools. " +
				"Always be careful when writing files - explain what you're doing and ask for confirmation " +
				"if the operation might be destructive.",
		},
		Capability{
			Name:        "code-execution",
			Description: "Execute Python and shell commands",
			Tools:       []string{"exec_python", "exec_shell"},
			PromptAddendum: "You can execute Python code and shell commands using the code execution tools. " +
				"Always explain what code will do before executing it. " +
				"Never execute destructive commands without explicit user confirmation.",
		},
		Capability{
			Name:        "web-access",
			Description: "Search and fetch web content",
			Tools:       []string{"web_search", "web_fetch"},
			PromptAddendum: "You can search the web and fetch content from URLs using the web access tools. " +
				"This is useful for gathering information, researching topics, or checking documentation.",
		},
	)
}
