// Package llm defines the provider-neutral chat types, the streaming
// event model, and a provider factory registry.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Message represents one chat message in provider-neutral form.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a completed tool invocation request from the model.
// Arguments is the raw JSON argument string, accumulated from fragments.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDef advertises one callable tool to the model.
type ToolDef struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Usage carries token counts reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates usage across model calls within one turn.
func (u *Usage) Add(o Usage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.TotalTokens += o.TotalTokens
}

// Request is one chat completion request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	// Tools, when empty, must be entirely absent from the wire request.
	Tools []ToolDef
}

// EventType discriminates stream events.
type EventType string

const (
	EventContent   EventType = "content"
	EventToolCalls EventType = "tool_calls"
	EventDone      EventType = "done"
	EventError     EventType = "error"
)

// Event is one element of the ordered stream a provider yields for a
// request. Content deltas are emitted as they arrive; tool calls are
// emitted once, complete and sorted by index; done is terminal and
// carries usage; error is terminal.
type Event struct {
	Type         EventType
	Delta        string
	Calls        []ToolCall
	FinishReason string
	Usage        Usage
	Err          error
}

// Streamer is a chat provider. The returned channel is closed after a
// terminal event (done or error) or when ctx is cancelled.
type Streamer interface {
	// Name returns the provider name (e.g. "openrouter").
	Name() string
	Stream(ctx context.Context, req Request) (<-chan Event, error)
}

// Factory constructs a Streamer from provider-specific config.
type Factory func(ctx context.Context, cfg map[string]any) (Streamer, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a provider factory under a name.
func Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("llm: empty provider name")
	}
	if f == nil {
		return fmt.Errorf("llm: nil factory for %q", name)
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := factories[name]; exists {
		return fmt.Errorf("llm: provider %q already registered", name)
	}
	factories[name] = f
	return nil
}

// Resolve gets a registered factory by name.
func Resolve(name string) (Factory, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Range iterates all registered factories.
func Range(fn func(name string, f Factory)) {
	regMu.RLock()
	defer regMu.RUnlock()
	for n, f := range factories {
		fn(n, f)
	}
}
