// Package session runs the chat loop for one agent: window assembly,
// streamed model calls, tool dispatch, and durable history checkpoints.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wilhg/agentchat/pkg/adapters/llm"
	"github.com/wilhg/agentchat/pkg/agent"
	"github.com/wilhg/agentchat/pkg/capability"
	"github.com/wilhg/agentchat/pkg/errmodel"
	"github.com/wilhg/agentchat/pkg/tool"
	"github.com/wilhg/agentchat/pkg/transcript"
)

const (
	// maxToolIterations bounds model round-trips within one user turn.
	maxToolIterations = 10
	// historyWindow is how many durable records precede the current turn
	// in the model window.
	historyWindow = 20

	defaultToolWorkers = 4
)

// Options configures a Session. Agent, Agents, Capabilities, Catalog,
// and Streamer are required; Transcripts is optional (no durable
// history without it).
type Options struct {
	Agent        *agent.Agent
	Agents       *agent.Store
	Capabilities *capability.Registry
	Catalog      *tool.Catalog
	Streamer     llm.Streamer
	Transcripts  *transcript.Store
	ToolWorkers  int
	Logger       *slog.Logger
}

// Session is the conversation state for one agent. One turn runs at a
// time per agent; turns for the same agent serialize on the transcript
// store's per-agent lock.
type Session struct {
	id          string
	agent       *agent.Agent
	agents      *agent.Store
	catalog     *tool.Catalog
	streamer    llm.Streamer
	transcripts *transcript.Store

	systemPrompt string
	granted      []string
	grantedSet   map[string]bool
	toolDefs     []llm.ToolDef

	workers *pool.Pool
	log     *slog.Logger

	mu      sync.Mutex
	history []transcript.Record
	usage   llm.Usage
}

// New builds a session: the system prompt is composed from the agent's
// capabilities, the granted tool descriptors are resolved once, and
// durable history is loaded when the agent preserves it.
func New(ctx context.Context, opts Options) (*Session, error) {
	switch {
	case opts.Agent == nil:
		return nil, errmodel.Validation("missing_agent", "session requires an agent", nil)
	case opts.Agents == nil:
		return nil, errmodel.Validation("missing_store", "session requires an agent store", nil)
	case opts.Capabilities == nil:
		return nil, errmodel.Validation("missing_capabilities", "session requires a capability registry", nil)
	case opts.Catalog == nil:
		return nil, errmodel.Validation("missing_catalog", "session requires a tool catalog", nil)
	case opts.Streamer == nil:
		return nil, errmodel.Validation("missing_streamer", "session requires a model provider", nil)
	}
	workers := opts.ToolWorkers
	if workers <= 0 {
		workers = defaultToolWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		id:           uuid.NewString(),
		agent:        opts.Agent,
		agents:       opts.Agents,
		catalog:      opts.Catalog,
		streamer:     opts.Streamer,
		transcripts:  opts.Transcripts,
		systemPrompt: opts.Capabilities.ComposeSystemPrompt(opts.Agent.SystemPrompt, opts.Agent.Capabilities),
		granted:      opts.Capabilities.ResolveGrantedTools(opts.Agent.Capabilities, opts.Catalog),
		grantedSet:   map[string]bool{},
		workers:      pool.New().WithMaxGoroutines(workers),
		log:          logger,
	}
	for _, name := range s.granted {
		s.grantedSet[name] = true
		t, ok := opts.Catalog.Lookup(name)
		if !ok {
			continue
		}
		d := t.Describe()
		s.toolDefs = append(s.toolDefs, llm.ToolDef{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.InputSchema,
		})
	}

	if opts.Transcripts != nil && opts.Agent.Config.PreserveHistory {
		recs, err := opts.Transcripts.Load(ctx, opts.Agent.Name)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		s.history = recs
	}
	return s, nil
}

// Close waits for any dispatched tool work to finish.
func (s *Session) Close() error {
	s.workers.Wait()
	return nil
}

// ID returns the unique identifier assigned to this session.
func (s *Session) ID() string { return s.id }

// AgentName returns the agent this session speaks for.
func (s *Session) AgentName() string { return s.agent.Name }

// Capabilities returns the agent's granted capability names.
func (s *Session) Capabilities() []string { return slices.Clone(s.agent.Capabilities) }

// GrantedTools returns the tool names this session may invoke.
func (s *Session) GrantedTools() []string { return slices.Clone(s.granted) }

// ModelName implements tool.SessionInfo.
func (s *Session) ModelName() string { return s.agent.Config.Model }

// ContextUsage implements tool.SessionInfo with cumulative token counts.
func (s *Session) ContextUsage() (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage.PromptTokens, s.usage.CompletionTokens, s.usage.TotalTokens
}

// Usage returns cumulative token usage for the session.
func (s *Session) Usage() llm.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// History returns a copy of the durable transcript view.
func (s *Session) History() []transcript.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Info returns the connect-time info event for this session.
func (s *Session) Info() Event {
	return Info(
		fmt.Sprintf("Connected to agent '%s' (model %s)", s.agent.Name, s.agent.Config.Model),
		s.Capabilities(),
		s.GrantedTools(),
	)
}

// ClearHistory drops in-memory and durable history.
func (s *Session) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
	if s.transcripts == nil {
		return nil
	}
	return s.transcripts.Clear(ctx, s.agent.Name)
}

// HandleUserMessage runs one turn: the user text goes to the model
// together with the system prompt and recent history; tool calls are
// executed and fed back until the model produces a final response or
// the iteration ceiling is hit. Turn-level failures are reported
// through sink and leave durable history untouched; the returned error
// is reserved for sink delivery failures and invalid input.
func (s *Session) HandleUserMessage(ctx context.Context, text string, sink Sink) error {
	if strings.TrimSpace(text) == "" {
		return errmodel.Validation("empty_message", "message is empty", nil)
	}
	if s.transcripts != nil {
		unlock := s.transcripts.Lock(s.agent.Name)
		defer unlock()
	}

	tr := otel.Tracer("agentchat/session")
	ctx, span := tr.Start(ctx, "Session.HandleUserMessage", trace.WithAttributes(
		attribute.String("session.id", s.id),
		attribute.String("agent.name", s.agent.Name),
		attribute.String("llm.model", s.agent.Config.Model),
	))
	defer span.End()

	turn := []llm.Message{{Role: "user", Content: text}}
	var (
		turnUsage llm.Usage
		turnCalls []llm.ToolCall
	)

	for iter := 0; iter < maxToolIterations; iter++ {
		req := llm.Request{
			Model:       s.agent.Config.Model,
			Messages:    s.window(turn),
			Temperature: s.agent.Config.Temperature,
		}
		if len(s.toolDefs) > 0 {
			req.Tools = s.toolDefs
		}

		ch, err := s.streamer.Stream(ctx, req)
		if err != nil {
			span.RecordError(err)
			return sink.Send(ctx, ErrorEvent(err))
		}

		var (
			buf      strings.Builder
			pending  []llm.ToolCall
			finished bool
		)
		for ev := range ch {
			switch ev.Type {
			case llm.EventContent:
				buf.WriteString(ev.Delta)
				if err := sink.Send(ctx, StreamChunk(ev.Delta, false)); err != nil {
					return err
				}
			case llm.EventToolCalls:
				pending = ev.Calls
			case llm.EventDone:
				finished = true
				turnUsage.Add(ev.Usage)
				s.addUsage(ev.Usage)
			case llm.EventError:
				span.RecordError(ev.Err)
				if err := sink.Send(ctx, ErrorEvent(ev.Err)); err != nil {
					return err
				}
			}
		}
		if !finished {
			// The stream ended on an error. Nothing from this turn is
			// persisted; the session stays usable.
			s.log.Warn("turn aborted", "agent", s.agent.Name, "iteration", iter)
			return nil
		}

		if len(pending) > 0 {
			turn = append(turn, llm.Message{Role: "assistant", Content: buf.String(), ToolCalls: pending})
			turnCalls = append(turnCalls, pending...)
			for _, call := range pending {
				result, err := s.runToolCall(ctx, sink, call)
				if err != nil {
					return err
				}
				turn = append(turn, llm.Message{Role: "tool", Content: result, ToolCallID: call.ID})
			}
			continue
		}

		final := buf.String()
		if err := sink.Send(ctx, StreamChunk("", true)); err != nil {
			return err
		}
		if err := sink.Send(ctx, AgentMessage(final, turnUsage)); err != nil {
			return err
		}
		s.checkpoint(ctx, text, final, turnCalls, turnUsage)
		return nil
	}

	limitErr := errmodel.System("tool_limit", "tool execution limit reached", map[string]any{"limit": maxToolIterations}, nil)
	span.RecordError(limitErr)
	return sink.Send(ctx, ErrorEvent(limitErr))
}

// runToolCall executes one requested call and reports it through sink.
// Tool failures become textual results for the model; they never abort
// the turn. A call naming a tool outside the granted set is refused
// without touching the tool.
func (s *Session) runToolCall(ctx context.Context, sink Sink, call llm.ToolCall) (string, error) {
	args := map[string]any{}
	var parseErr error
	if strings.TrimSpace(call.Arguments) != "" {
		parseErr = json.Unmarshal([]byte(call.Arguments), &args)
	}
	if err := sink.Send(ctx, ToolStart(call.Name, args)); err != nil {
		return "", err
	}

	var (
		result  string
		success bool
	)
	switch {
	case parseErr != nil:
		result = "Error: invalid arguments"
	case !s.grantedSet[call.Name]:
		result = fmt.Sprintf("Error: tool '%s' not found", call.Name)
	default:
		out, err := s.dispatch(ctx, call.Name, args)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", err
			}
			result = fmt.Sprintf("Error executing tool: %v", err)
		} else {
			result = out
			success = true
		}
	}
	if err := sink.Send(ctx, ToolResult(call.Name, result, success)); err != nil {
		return "", err
	}
	return result, nil
}

type toolOutcome struct {
	out string
	err error
}

// dispatch hands the invocation to the bounded worker pool and waits
// for it. On cancellation the running tool finishes on its own and the
// result is dropped.
func (s *Session) dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	res := make(chan toolOutcome, 1)
	inv := tool.Invocation{Agents: s.agents, Session: s}
	s.workers.Go(func() {
		out, err := s.catalog.SafeInvoke(ctx, name, inv, args)
		res <- toolOutcome{out: out, err: err}
	})
	select {
	case r := <-res:
		return r.out, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// window assembles the model messages: system prompt, the tail of
// durable history, then the current turn.
func (s *Session) window(turn []llm.Message) []llm.Message {
	s.mu.Lock()
	hist := s.history
	if len(hist) > historyWindow {
		hist = hist[len(hist)-historyWindow:]
	}
	hist = slices.Clone(hist)
	s.mu.Unlock()

	msgs := make([]llm.Message, 0, 1+len(hist)+len(turn))
	msgs = append(msgs, llm.Message{Role: "system", Content: s.systemPrompt})
	for _, rec := range hist {
		role := "user"
		if rec.Role == "agent" {
			role = "assistant"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: rec.Message})
	}
	return append(msgs, turn...)
}

func (s *Session) addUsage(u llm.Usage) {
	s.mu.Lock()
	s.usage.Add(u)
	s.mu.Unlock()
}

// checkpoint appends the completed exchange to history and rewrites
// the durable transcript for history-preserving agents. The agent
// record keeps the turn's tool calls as metadata; window replay uses
// message content only.
func (s *Session) checkpoint(ctx context.Context, userText, agentText string, calls []llm.ToolCall, usage llm.Usage) {
	u := usage
	s.mu.Lock()
	s.history = append(s.history,
		transcript.Record{Role: "user", Message: userText},
		transcript.Record{Role: "agent", Message: agentText, ToolCalls: calls, Usage: &u},
	)
	recs := slices.Clone(s.history)
	s.mu.Unlock()

	if s.transcripts == nil || !s.agent.Config.PreserveHistory {
		return
	}
	if err := s.transcripts.Rewrite(ctx, s.agent.Name, recs); err != nil {
		s.log.Warn("persist transcript", "agent", s.agent.Name, "error", err)
	}
}
