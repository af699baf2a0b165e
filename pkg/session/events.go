package session

import (
	"context"

	"github.com/wilhg/agentchat/pkg/adapters/llm"
	"github.com/wilhg/agentchat/pkg/errmodel"
)

// Event type names understood by chat frontends.
const (
	EventStreamChunk  = "stream_chunk"
	EventToolStart    = "tool_start"
	EventToolResult   = "tool_result"
	EventAgentMessage = "agent_message"
	EventError        = "error"
	EventInfo         = "info"
)

// Event is one frame of the chat event protocol. Only the fields
// relevant to the Type are populated.
type Event struct {
	Type         string         `json:"type"`
	Content      string         `json:"content,omitempty"`
	IsComplete   bool           `json:"is_complete,omitempty"`
	ToolName     string         `json:"tool_name,omitempty"`
	Arguments    map[string]any `json:"arguments,omitempty"`
	Result       string         `json:"result,omitempty"`
	Success      bool           `json:"success,omitempty"`
	Usage        *llm.Usage     `json:"usage,omitempty"`
	Message      string         `json:"message,omitempty"`
	Recoverable  bool           `json:"recoverable,omitempty"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Tools        []string       `json:"tools,omitempty"`
}

// Sink receives session events. Implementations deliver them to a
// websocket, a terminal, or a test recorder.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Send(ctx context.Context, ev Event) error { return f(ctx, ev) }

// StreamChunk carries one streamed content delta. The final chunk of a
// response has IsComplete set and empty content.
func StreamChunk(content string, complete bool) Event {
	return Event{Type: EventStreamChunk, Content: content, IsComplete: complete}
}

// ToolStart announces a tool invocation before it runs.
func ToolStart(name string, args map[string]any) Event {
	return Event{Type: EventToolStart, ToolName: name, Arguments: args}
}

// ToolResult carries the textual outcome of a tool invocation.
func ToolResult(name, result string, success bool) Event {
	return Event{Type: EventToolResult, ToolName: name, Result: result, Success: success}
}

// AgentMessage is the complete assistant response for a turn.
func AgentMessage(content string, usage llm.Usage) Event {
	u := usage
	return Event{Type: EventAgentMessage, Content: content, Usage: &u}
}

// ErrorEvent reports a failure. Recoverable failures leave the session
// usable for another turn.
func ErrorEvent(err error) Event {
	return Event{Type: EventError, Message: errmodel.From(err).Message, Recoverable: errmodel.Recoverable(err)}
}

// Info describes the session after connect: granted capabilities and
// the tools they unlock.
func Info(message string, capabilities, tools []string) Event {
	return Event{Type: EventInfo, Message: message, Capabilities: capabilities, Tools: tools}
}
