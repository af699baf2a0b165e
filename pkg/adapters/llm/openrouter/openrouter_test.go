package openrouter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wilhg/agentchat/pkg/adapters/llm"
	"github.com/wilhg/agentchat/pkg/errmodel"
)

func sseServer(t *testing.T, lines []string, capture *wireRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, capture); err != nil {
				t.Errorf("request body: %v", err)
			}
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			io.WriteString(w, line+"\n")
		}
	}))
}

func testClient(url string) *Client {
	c := New("test-key")
	c.baseURL = url
	return c
}

func collect(t *testing.T, c *Client, req llm.Request) []llm.Event {
	t.Helper()
	ch, err := c.Stream(context.Background(), req)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	var out []llm.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestStreamContent(t *testing.T) {
	srv := sseServer(t, []string{
		`: comment line`,
		``,
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`,
		`data: [DONE]`,
	}, nil)
	defer srv.Close()

	events := collect(t, testClient(srv.URL), llm.Request{Model: "openai/gpt-4o-mini"})
	if len(events) != 3 {
		t.Fatalf("events=%+v", events)
	}
	if events[0].Type != llm.EventContent || events[0].Delta != "Hel" {
		t.Fatalf("event 0 = %+v", events[0])
	}
	if events[1].Delta != "lo" {
		t.Fatalf("event 1 = %+v", events[1])
	}
	done := events[2]
	if done.Type != llm.EventDone || done.FinishReason != "stop" {
		t.Fatalf("done = %+v", done)
	}
	if done.Usage.TotalTokens != 15 || done.Usage.PromptTokens != 12 {
		t.Fatalf("usage = %+v", done.Usage)
	}
}

func TestStreamToolCallAccumulation(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_b","function":{"name":"write_file","arguments":""}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_a","function":{"name":"read_file","arguments":"{\"pa"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"th\":\"x\"}"}},{"index":1,"function":{"arguments":"{}"}}]}}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		`data: {"choices":[],"usage":{"prompt_tokens":50,"completion_tokens":20,"total_tokens":70}}`,
		`data: [DONE]`,
	}, nil)
	defer srv.Close()

	events := collect(t, testClient(srv.URL), llm.Request{Model: "openai/gpt-4o-mini"})
	if len(events) != 2 {
		t.Fatalf("events=%+v", events)
	}
	tc := events[0]
	if tc.Type != llm.EventToolCalls || len(tc.Calls) != 2 {
		t.Fatalf("tool_calls event = %+v", tc)
	}
	if tc.Calls[0].ID != "call_a" || tc.Calls[0].Name != "read_file" || tc.Calls[0].Arguments != `{"path":"x"}` {
		t.Fatalf("call 0 = %+v", tc.Calls[0])
	}
	if tc.Calls[1].ID != "call_b" || tc.Calls[1].Name != "write_file" || tc.Calls[1].Arguments != "{}" {
		t.Fatalf("call 1 = %+v", tc.Calls[1])
	}
	done := events[1]
	if done.Type != llm.EventDone || done.FinishReason != "tool_calls" {
		t.Fatalf("done = %+v", done)
	}
	if done.Usage.TotalTokens != 70 {
		t.Fatalf("trailing usage lost: %+v", done.Usage)
	}
}

func TestStreamMalformedLineContinues(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"choices":[{"delta":{"content":"a"}}]}`,
		`data: {not json`,
		`data: {"choices":[{"delta":{"content":"b"}}]}`,
		`data: [DONE]`,
	}, nil)
	defer srv.Close()

	events := collect(t, testClient(srv.URL), llm.Request{Model: "m"})
	if len(events) != 4 {
		t.Fatalf("events=%+v", events)
	}
	if events[1].Type != llm.EventError {
		t.Fatalf("event 1 = %+v", events[1])
	}
	if !errmodel.Recoverable(events[1].Err) {
		t.Fatalf("parse error should be recoverable: %v", events[1].Err)
	}
	if events[2].Delta != "b" {
		t.Fatalf("stream did not continue: %+v", events[2])
	}
	if events[3].Type != llm.EventDone {
		t.Fatalf("event 3 = %+v", events[3])
	}
}

func TestStreamAPIErrorTerminates(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"error":{"message":"rate limited","code":429}}`,
		`data: {"choices":[{"delta":{"content":"never"}}]}`,
		`data: [DONE]`,
	}, nil)
	defer srv.Close()

	events := collect(t, testClient(srv.URL), llm.Request{Model: "m"})
	if len(events) != 1 {
		t.Fatalf("events=%+v", events)
	}
	if events[0].Type != llm.EventError {
		t.Fatalf("event = %+v", events[0])
	}
	if !strings.Contains(events[0].Err.Error(), "rate limited") {
		t.Fatalf("err = %v", events[0].Err)
	}
}

func TestStreamNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	events := collect(t, testClient(srv.URL), llm.Request{Model: "m"})
	if len(events) != 1 || events[0].Type != llm.EventError {
		t.Fatalf("events=%+v", events)
	}
	if !strings.Contains(events[0].Err.Error(), "401") {
		t.Fatalf("err = %v", events[0].Err)
	}
}

func TestRequestShape(t *testing.T) {
	var captured wireRequest
	srv := sseServer(t, []string{`data: [DONE]`}, &captured)
	defer srv.Close()

	req := llm.Request{
		Model:       "openai/gpt-4o-mini",
		Temperature: 0.7,
		Messages: []llm.Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
			{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "c1", Name: "read_file", Arguments: `{"path":"x"}`}}},
			{Role: "tool", Content: "contents", ToolCallID: "c1"},
		},
		Tools: []llm.ToolDef{{Name: "read_file", Description: "Read a file", Parameters: json.RawMessage(`{"type":"object"}`)}},
	}
	collect(t, testClient(srv.URL), req)

	if !captured.Stream || !captured.StreamOptions.IncludeUsage {
		t.Fatalf("stream flags: %+v", captured)
	}
	if captured.ToolChoice != "auto" || len(captured.Tools) != 1 {
		t.Fatalf("tools: %+v", captured)
	}
	if captured.Tools[0].Function.Name != "read_file" {
		t.Fatalf("tool def: %+v", captured.Tools[0])
	}
	if len(captured.Messages) != 4 {
		t.Fatalf("messages: %+v", captured.Messages)
	}
	// Assistant tool-call message carries null content.
	if captured.Messages[2].Content != nil {
		t.Fatalf("assistant content = %v", *captured.Messages[2].Content)
	}
	if len(captured.Messages[2].ToolCalls) != 1 || captured.Messages[2].ToolCalls[0].Type != "function" {
		t.Fatalf("assistant tool calls: %+v", captured.Messages[2].ToolCalls)
	}
	if captured.Messages[3].ToolCallID != "c1" {
		t.Fatalf("tool message: %+v", captured.Messages[3])
	}
}

func TestRequestOmitsToolsWhenNoneGranted(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &raw); err != nil {
			t.Errorf("request body: %v", err)
		}
		io.WriteString(w, "data: [DONE]\n")
	}))
	defer srv.Close()

	collect(t, testClient(srv.URL), llm.Request{
		Model:    "m",
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if _, present := raw["tools"]; present {
		t.Fatalf("tools key must be absent when none granted")
	}
	if _, present := raw["tool_choice"]; present {
		t.Fatalf("tool_choice must be absent when no tools granted")
	}
}
