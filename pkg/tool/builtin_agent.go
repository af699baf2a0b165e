package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/wilhg/agentchat/pkg/agent"
)

const createAgentDoc = `Create a new agent.

Args:
    name: Agent name (used as filename)
    description: Brief description of what the agent does
    capabilities: List of capability names to grant (default: none)
    system_prompt: Custom system prompt for the agent
`

type createAgentArgs struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities" default:""`
	SystemPrompt string   `json:"system_prompt" default:""`
}

type createAgentTool struct{ desc Descriptor }

func newCreateAgentTool() (Tool, error) {
	d, err := BuildDescriptor("create_agent", createAgentDoc, createAgentArgs{})
	if err != nil {
		return nil, err
	}
	return &createAgentTool{desc: d}, nil
}

func (t *createAgentTool) Describe() Descriptor { return t.desc }

func (t *createAgentTool) Invoke(_ context.Context, inv Invocation, args map[string]any) (string, error) {
	if inv.Agents == nil {
		return "", fmt.Errorf("agent store not available")
	}
	var a createAgentArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if inv.Agents.Exists(a.Name) {
		return fmt.Sprintf("Error: Agent '%s' already exists", a.Name), nil
	}
	if err := inv.Agents.Save(agent.New(a.Name, a.Description, a.Capabilities, a.SystemPrompt)); err != nil {
		return fmt.Sprintf("Error creating agent: %v", err), nil
	}
	caps := "none (chat only)"
	if len(a.Capabilities) > 0 {
		caps = strings.Join(a.Capabilities, ", ")
	}
	return fmt.Sprintf("Created agent '%s'\nCapabilities: %s", a.Name, caps), nil
}

const modifyAgentDoc = `Modify an existing agent's properties.

Args:
    name: Agent name to modify
    description: New agent description
    capabilities: New capability list (replaces existing)
    system_prompt: New system prompt
`

type modifyAgentTool struct{ desc Descriptor }

func newModifyAgentTool() (Tool, error) {
	type modifyAgentArgs struct {
		Name         string   `json:"name"`
		Description  string   `json:"description" default:""`
		Capabilities []string `json:"capabilities" default:""`
		SystemPrompt string   `json:"system_prompt" default:""`
	}
	d, err := BuildDescriptor("modify_agent", modifyAgentDoc, modifyAgentArgs{})
	if err != nil {
		return nil, err
	}
	return &modifyAgentTool{desc: d}, nil
}

func (t *modifyAgentTool) Describe() Descriptor { return t.desc }

// Invoke inspects the raw args map so that only fields actually supplied
// by the model are updated.
func (t *modifyAgentTool) Invoke(_ context.Context, inv Invocation, args map[string]any) (string, error) {
	if inv.Agents == nil {
		return "", fmt.Errorf("agent store not available")
	}
	name, _ := args["name"].(string)
	a, err := inv.Agents.Load(name)
	if err != nil {
		return fmt.Sprintf("Error: Agent '%s' not found", name), nil
	}
	if v, ok := args["description"].(string); ok {
		a.Description = v
	}
	if v, ok := args["capabilities"].([]any); ok {
		caps := make([]string, 0, len(v))
		for _, c := range v {
			if s, ok := c.(string); ok {
				caps = append(caps, s)
			}
		}
		a.Capabilities = caps
	}
	if v, ok := args["system_prompt"].(string); ok {
		a.SystemPrompt = v
	}
	if err := inv.Agents.Save(a); err != nil {
		return fmt.Sprintf("Error updating agent: %v", err), nil
	}
	return fmt.Sprintf("Updated agent '%s'", name), nil
}

const deleteAgentDoc = `Delete an agent.

Args:
    name: Agent name to delete
`

type deleteAgentArgs struct {
	Name string `json:"name"`
}

type deleteAgentTool struct{ desc Descriptor }

func newDeleteAgentTool() (Tool, error) {
	d, err := BuildDescriptor("delete_agent", deleteAgentDoc, deleteAgentArgs{})
	if err != nil {
		return nil, err
	}
	return &deleteAgentTool{desc: d}, nil
}

func (t *deleteAgentTool) Describe() Descriptor { return t.desc }

func (t *deleteAgentTool) Invoke(_ context.Context, inv Invocation, args map[string]any) (string, error) {
	if inv.Agents == nil {
		return "", fmt.Errorf("agent store not available")
	}
	var a deleteAgentArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if !inv.Agents.Exists(a.Name) {
		return fmt.Sprintf("Error: Agent '%s' not found", a.Name), nil
	}
	if a.Name == agent.BuilderName {
		return "Error: Cannot delete the agent-builder", nil
	}
	if err := inv.Agents.Delete(a.Name); err != nil {
		return fmt.Sprintf("Error deleting agent: %v", err), nil
	}
	return fmt.Sprintf("Deleted agent '%s'", a.Name), nil
}

const listAgentsDoc = `List all available agents.`

type listAgentsTool struct{ desc Descriptor }

func newListAgentsTool() (Tool, error) {
	d, err := BuildDescriptor("list_agents", listAgentsDoc, nil)
	if err != nil {
		return nil, err
	}
	return &listAgentsTool{desc: d}, nil
}

func (t *listAgentsTool) Describe() Descriptor { return t.desc }

func (t *listAgentsTool) Invoke(_ context.Context, inv Invocation, _ map[string]any) (string, error) {
	if inv.Agents == nil {
		return "", fmt.Errorf("agent store not available")
	}
	names, err := inv.Agents.List()
	if err != nil {
		return fmt.Sprintf("Error listing agents: %v", err), nil
	}
	if len(names) == 0 {
		return "No agents found.", nil
	}
	last := inv.Agents.LastAgent()
	lines := []string{"Available agents:"}
	for _, name := range names {
		prefix := " "
		if name == last {
			prefix = "*"
		}
		a, err := inv.Agents.Load(name)
		if err != nil {
			lines = append(lines, fmt.Sprintf("%s %s", prefix, name))
			continue
		}
		caps := "[chat only]"
		if len(a.Capabilities) > 0 {
			caps = "[" + strings.Join(a.Capabilities, ", ") + "]"
		}
		lines = append(lines, fmt.Sprintf("%s %s - %s %s", prefix, name, a.Description, caps))
	}
	return strings.Join(lines, "\n"), nil
}

const getAgentDetailsDoc = `Get detailed information about a specific agent.

Args:
    name: Name of the agent to get details for
`

type getAgentDetailsArgs struct {
	Name string `json:"name"`
}

type getAgentDetailsTool struct{ desc Descriptor }

func newGetAgentDetailsTool() (Tool, error) {
	d, err := BuildDescriptor("get_agent_details", getAgentDetailsDoc, getAgentDetailsArgs{})
	if err != nil {
		return nil, err
	}
	return &getAgentDetailsTool{desc: d}, nil
}

func (t *getAgentDetailsTool) Describe() Descriptor { return t.desc }

func (t *getAgentDetailsTool) Invoke(_ context.Context, inv Invocation, args map[string]any) (string, error) {
	if inv.Agents == nil {
		return "", fmt.Errorf("agent store not available")
	}
	var ga getAgentDetailsArgs
	if err := decodeArgs(args, &ga); err != nil {
		return "", err
	}
	a, err := inv.Agents.Load(ga.Name)
	if err != nil {
		return fmt.Sprintf("Error: Agent '%s' not found", ga.Name), nil
	}
	lines := []string{
		fmt.Sprintf("Agent: %s", a.Name),
		fmt.Sprintf("Description: %s", a.Description),
		fmt.Sprintf("Created: %s", a.Created),
		fmt.Sprintf("Last used: %s", a.LastUsed),
		fmt.Sprintf("Version: %s", a.Version),
		"",
		"Capabilities:",
	}
	if len(a.Capabilities) > 0 {
		for _, c := range a.Capabilities {
			lines = append(lines, "  - "+c)
		}
	} else {
		lines = append(lines, "  (none - chat only)")
	}
	lines = append(lines, "", "Configuration:")
	lines = append(lines,
		fmt.Sprintf("  model: %s", a.Config.Model),
		fmt.Sprintf("  temperature: %g", a.Config.Temperature),
		fmt.Sprintf("  preserve_history: %t", a.Config.PreserveHistory),
	)
	if a.SystemPrompt != "" {
		preview := a.SystemPrompt
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		lines = append(lines, "", "System Prompt:", "  "+preview)
	}
	return strings.Join(lines, "\n"), nil
}
