// Package openrouter streams chat completions from the OpenRouter API
// using server-sent events.
package openrouter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wilhg/agentchat/pkg/adapters/llm"
	"github.com/wilhg/agentchat/pkg/errmodel"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultTimeout = 60 * time.Second
	defaultReferer = "https://github.com/wilhg/agentchat"
	defaultTitle   = "agentchat"
)

func init() {
	_ = llm.Register("openrouter", func(ctx context.Context, cfg map[string]any) (llm.Streamer, error) {
		apiKey, _ := cfg["api_key"].(string)
		if apiKey == "" {
			return nil, errmodel.Validation("missing_api_key", "openrouter requires api_key", nil)
		}
		c := New(apiKey)
		if v, ok := cfg["base_url"].(string); ok && v != "" {
			c.baseURL = v
		}
		if v, ok := cfg["referer"].(string); ok && v != "" {
			c.referer = v
		}
		if v, ok := cfg["title"].(string); ok && v != "" {
			c.title = v
		}
		return c, nil
	})
}

// Client talks to the OpenRouter chat completions endpoint.
type Client struct {
	apiKey  string
	baseURL string
	referer string
	title   string
	http    *http.Client
}

// New builds a Client with default endpoint, attribution headers, and a
// 60 second request timeout.
func New(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		referer: defaultReferer,
		title:   defaultTitle,
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(nil),
		},
	}
}

func (c *Client) Name() string { return "openrouter" }

// Stream issues the request and yields events as SSE chunks arrive. The
// channel closes after a terminal done or error event.
func (c *Client) Stream(ctx context.Context, req llm.Request) (<-chan llm.Event, error) {
	body, err := json.Marshal(buildWireRequest(req))
	if err != nil {
		return nil, errmodel.New(errmodel.CategoryValidation, "encode_request", "encode request", nil, err)
	}

	events := make(chan llm.Event)
	go func() {
		defer close(events)
		c.run(ctx, body, events)
	}()
	return events, nil
}

func (c *Client) run(ctx context.Context, body []byte, events chan<- llm.Event) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		emit(ctx, events, errorEvent(errmodel.Network("build_request", "build request", nil, err)))
		return
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("HTTP-Referer", c.referer)
	httpReq.Header.Set("X-Title", c.title)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		emit(ctx, events, errorEvent(errmodel.Network("request_failed", "openrouter request failed", nil, err)))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		emit(ctx, events, errorEvent(errmodel.Model("api_status", fmt.Sprintf("openrouter returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b))), map[string]any{"status": resp.StatusCode})))
		return
	}

	c.consume(ctx, resp.Body, events)
}

// consume runs the SSE read loop. It accumulates tool call fragments per
// index, emits a single tool_calls event when the model closes the call
// list, and keeps reading afterwards so a trailing usage chunk is not
// lost. A malformed data line produces an error event and the loop
// continues; a top-level error object terminates the stream.
func (c *Client) consume(ctx context.Context, body io.Reader, events chan<- llm.Event) {
	reader := bufio.NewReader(body)
	acc := newCallAccumulator()
	var (
		usage        llm.Usage
		finishReason string
	)

	for {
		if ctx.Err() != nil {
			emit(ctx, events, errorEvent(errmodel.Network("cancelled", "stream cancelled", nil, ctx.Err())))
			return
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// Stream ended without [DONE]; treat what we have as final.
				emit(ctx, events, llm.Event{Type: llm.EventDone, FinishReason: finishReason, Usage: usage})
				return
			}
			emit(ctx, events, errorEvent(errmodel.Network("read_stream", "read stream", nil, err)))
			return
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			emit(ctx, events, llm.Event{Type: llm.EventDone, FinishReason: finishReason, Usage: usage})
			return
		}

		var ck chunk
		if err := json.Unmarshal([]byte(data), &ck); err != nil {
			emit(ctx, events, errorEvent(errmodel.Model("bad_chunk", "malformed stream chunk", map[string]any{"line": data})))
			continue
		}
		if ck.Error != nil {
			emit(ctx, events, errorEvent(errmodel.Model("api_error", ck.Error.Message, map[string]any{"code": ck.Error.Code})))
			return
		}
		if ck.Usage != nil {
			usage = *ck.Usage
		}
		if len(ck.Choices) == 0 {
			continue
		}
		choice := ck.Choices[0]
		if choice.Delta.Content != nil && *choice.Delta.Content != "" {
			if !emit(ctx, events, llm.Event{Type: llm.EventContent, Delta: *choice.Delta.Content}) {
				return
			}
		}
		for _, frag := range choice.Delta.ToolCalls {
			acc.apply(frag)
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			finishReason = *choice.FinishReason
			if finishReason == "tool_calls" {
				if !emit(ctx, events, llm.Event{Type: llm.EventToolCalls, Calls: acc.sorted()}) {
					return
				}
				acc = newCallAccumulator()
			}
		}
	}
}

func emit(ctx context.Context, events chan<- llm.Event, e llm.Event) bool {
	select {
	case events <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

func errorEvent(err error) llm.Event {
	return llm.Event{Type: llm.EventError, Err: err}
}

// callAccumulator merges streamed tool call fragments. The id and name
// overwrite when present in a fragment; argument text appends.
type callAccumulator struct {
	byIndex map[int]*llm.ToolCall
}

func newCallAccumulator() *callAccumulator {
	return &callAccumulator{byIndex: map[int]*llm.ToolCall{}}
}

func (a *callAccumulator) apply(frag toolCallDelta) {
	tc, ok := a.byIndex[frag.Index]
	if !ok {
		tc = &llm.ToolCall{}
		a.byIndex[frag.Index] = tc
	}
	if frag.ID != nil && *frag.ID != "" {
		tc.ID = *frag.ID
	}
	if frag.Function != nil {
		if frag.Function.Name != nil && *frag.Function.Name != "" {
			tc.Name = *frag.Function.Name
		}
		if frag.Function.Arguments != nil {
			tc.Arguments += *frag.Function.Arguments
		}
	}
}

func (a *callAccumulator) sorted() []llm.ToolCall {
	idxs := make([]int, 0, len(a.byIndex))
	for i := range a.byIndex {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	calls := make([]llm.ToolCall, 0, len(idxs))
	for _, i := range idxs {
		calls = append(calls, *a.byIndex[i])
	}
	return calls
}

type wireRequest struct {
	Model         string        `json:"model"`
	Messages      []wireMessage `json:"messages"`
	Temperature   float64       `json:"temperature"`
	Stream        bool          `json:"stream"`
	StreamOptions streamOpts    `json:"stream_options"`
	Tools         []wireTool    `json:"tools,omitempty"`
	ToolChoice    string        `json:"tool_choice,omitempty"`
}

type streamOpts struct {
	IncludeUsage bool `json:"include_usage"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string      `json:"type"`
	Function wireToolDef `json:"function"`
}

type wireToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

func buildWireRequest(req llm.Request) wireRequest {
	wr := wireRequest{
		Model:         req.Model,
		Temperature:   req.Temperature,
		Stream:        true,
		StreamOptions: streamOpts{IncludeUsage: true},
	}
	for _, m := range req.Messages {
		wm := wireMessage{Role: m.Role, ToolCallID: m.ToolCallID}
		// An assistant message that only carries tool calls has null content.
		if m.Content != "" || len(m.ToolCalls) == 0 {
			content := m.Content
			wm.Content = &content
		}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunction{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		wr.Messages = append(wr.Messages, wm)
	}
	if len(req.Tools) > 0 {
		for _, t := range req.Tools {
			wr.Tools = append(wr.Tools, wireTool{
				Type: "function",
				Function: wireToolDef{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		wr.ToolChoice = "auto"
	}
	return wr
}

type chunk struct {
	Error   *apiError     `json:"error"`
	Choices []chunkChoice `json:"choices"`
	Usage   *llm.Usage    `json:"usage"`
}

type apiError struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
}

type chunkChoice struct {
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type chunkDelta struct {
	Content   *string         `json:"content"`
	ToolCalls []toolCallDelta `json:"tool_calls"`
}

type toolCallDelta struct {
	Index    int     `json:"index"`
	ID       *string `json:"id"`
	Function *struct {
		Name      *string `json:"name"`
		Arguments *string `json:"arguments"`
	} `json:"function"`
}
