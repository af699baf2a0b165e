package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wilhg/agentchat/pkg/errmodel"
)

// BuilderName is the bootstrap meta-agent that designs other agents.
const BuilderName = "agent-builder"

const builderSystemPrompt = `You are an expert agent designer. You help users:

1. Design new agents by understanding their needs
2. Create agent JSON definitions with appropriate capabilities
3. Generate code scaffolds for agents
4. Refine and improve existing agents

When creating agents, use minimal capabilities by default. Only add capabilities
the agent truly needs.

Available capabilities:
- agent-creation: Create and modify other agents
- file-operations: Read/write files
- code-execution: Run Python/shell commands
- web-access: Search and fetch web content

Most agents should start with NO capabilities and just use the language model for
conversation. Only grant capabilities when the agent's purpose specifically requires them.

When a user asks you to create an agent, use the create_agent tool to write the agent
JSON file. Be thoughtful about which capabilities to grant.`

// Store persists agent definitions as JSON files under a base directory.
// Layout: <base>/agents/<name>.json plus <base>/config.json for the
// last-used agent marker.
type Store struct {
	base       string
	agentsDir  string
	configFile string
}

// NewStore creates a store rooted at base, creating directories as needed.
func NewStore(base string) (*Store, error) {
	s := &Store{
		base:       base,
		agentsDir:  filepath.Join(base, "agents"),
		configFile: filepath.Join(base, "config.json"),
	}
	if err := os.MkdirAll(s.agentsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create agents dir: %w", err)
	}
	return s, nil
}

// DefaultStore opens the store at ~/.agentchat, or AGENTCHAT_HOME if set.
func DefaultStore() (*Store, error) {
	base := os.Getenv("AGENTCHAT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".agentchat")
	}
	return NewStore(base)
}

// Path returns a file path under the store's base directory, for
// sibling data like the transcript database.
func (s *Store) Path(elem string) string {
	return filepath.Join(s.base, elem)
}

func (s *Store) agentFile(name string) string {
	return filepath.Join(s.agentsDir, name+".json")
}

// Load reads an agent definition by name.
func (s *Store) Load(name string) (*Agent, error) {
	data, err := os.ReadFile(s.agentFile(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errmodel.Validation("not_found", fmt.Sprintf("agent %q not found", name), map[string]any{"agent": name})
		}
		return nil, err
	}
	// Prime defaults so fields absent from older files keep them.
	a := &Agent{Version: "1.0", Capabilities: []string{}, Config: DefaultConfig()}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("decode agent %q: %w", name, err)
	}
	return a, nil
}

// Save writes an agent definition, overwriting any existing file.
func (s *Store) Save(a *Agent) error {
	if a == nil || a.Name == "" {
		return errmodel.Validation("missing_fields", "agent name is empty", nil)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.agentFile(a.Name), data, 0o644)
}

// List returns all agent names, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.agentsDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether an agent definition file is present.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.agentFile(name))
	return err == nil
}

// Delete removes an agent definition.
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.agentFile(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

type storeConfig struct {
	LastAgent string `json:"last_agent"`
}

// LastAgent returns the name of the most recently used agent, or "".
func (s *Store) LastAgent() string {
	data, err := os.ReadFile(s.configFile)
	if err != nil {
		return ""
	}
	var cfg storeConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ""
	}
	return cfg.LastAgent
}

// SetLastAgent records the most recently used agent.
func (s *Store) SetLastAgent(name string) error {
	data, err := json.MarshalIndent(storeConfig{LastAgent: name}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.configFile, data, 0o644)
}

// Bootstrap creates the agent-builder meta-agent on first run and marks it
// as the last-used agent. Existing definitions are left untouched.
func (s *Store) Bootstrap() (*Agent, error) {
	if s.Exists(BuilderName) {
		return s.Load(BuilderName)
	}
	a := New(BuilderName,
		"Meta-agent that helps design and create other agents",
		[]string{"agent-creation", "file-operations", "code-execution"},
		builderSystemPrompt)
	if err := s.Save(a); err != nil {
		return nil, err
	}
	if err := s.SetLastAgent(BuilderName); err != nil {
		return nil, err
	}
	return a, nil
}
