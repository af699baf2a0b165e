// Package agent holds the agent definition record and its JSON-file store.
// An agent is a named configuration: a system prompt, a set of granted
// capability names, and model parameters. Agents are minimal by default;
// capabilities must be granted explicitly.
package agent

import (
	"time"
)

// Defaults for newly created agents.
const (
	DefaultModel       = "openai/gpt-4o-mini"
	DefaultTemperature = 0.7
)

// Config carries the model parameters for an agent.
type Config struct {
	Model           string  `json:"model"`
	Temperature     float64 `json:"temperature"`
	PreserveHistory bool    `json:"preserve_history"`
}

// DefaultConfig returns the config applied to agents created without one.
func DefaultConfig() Config {
	return Config{Model: DefaultModel, Temperature: DefaultTemperature, PreserveHistory: true}
}

// Agent is a self-contained agent definition, serialized as one JSON file.
type Agent struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Version      string            `json:"version"`
	Created      string            `json:"created"`
	LastUsed     string            `json:"last_used"`
	Capabilities []string          `json:"capabilities"`
	SystemPrompt string            `json:"system_prompt"`
	Config       Config            `json:"config"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// New creates an agent with default version, timestamps and config.
func New(name, description string, capabilities []string, systemPrompt string) *Agent {
	now := time.Now().Format(time.RFC3339)
	if capabilities == nil {
		capabilities = []string{}
	}
	return &Agent{
		Name:         name,
		Description:  description,
		Version:      "1.0",
		Created:      now,
		LastUsed:     now,
		Capabilities: capabilities,
		SystemPrompt: systemPrompt,
		Config:       DefaultConfig(),
	}
}
