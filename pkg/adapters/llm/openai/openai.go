// Package openai adapts the official OpenAI SDK to the streaming
// provider interface. Responses are fetched in one call and replayed
// as events.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	oa "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/wilhg/agentchat/pkg/adapters/llm"
)

type clientWrapper struct {
	client oa.Client
}

func (c *clientWrapper) Name() string { return "openai" }

func (c *clientWrapper) Stream(ctx context.Context, req llm.Request) (<-chan llm.Event, error) {
	// Model names may arrive in OpenRouter vendor form.
	model := strings.TrimPrefix(req.Model, "openai/")

	mm := make([]oa.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			mm = append(mm, oa.SystemMessage(m.Content))
		case "assistant":
			if len(m.ToolCalls) > 0 {
				calls := make([]oa.ChatCompletionMessageToolCallUnion, 0, len(m.ToolCalls))
				for _, tc := range m.ToolCalls {
					calls = append(calls, oa.ChatCompletionMessageToolCallUnion{
						ID:   tc.ID,
						Type: "function",
						Function: oa.ChatCompletionMessageFunctionToolCallFunction{
							Name:      tc.Name,
							Arguments: tc.Arguments,
						},
					})
				}
				mm = append(mm, oa.ChatCompletionMessage{Role: "assistant", Content: m.Content, ToolCalls: calls}.ToParam())
			} else {
				mm = append(mm, oa.AssistantMessage(m.Content))
			}
		case "tool":
			mm = append(mm, oa.ToolMessage(m.Content, m.ToolCallID))
		default:
			mm = append(mm, oa.UserMessage(m.Content))
		}
	}

	params := oa.ChatCompletionNewParams{
		Model:       shared.ChatModel(model),
		Messages:    mm,
		Temperature: oa.Float(req.Temperature),
	}
	for _, t := range req.Tools {
		var schema map[string]any
		if err := json.Unmarshal(t.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("openai: tool %q schema: %w", t.Name, err)
		}
		params.Tools = append(params.Tools, oa.ChatCompletionFunctionTool(oa.FunctionDefinitionParam{
			Name:        t.Name,
			Description: oa.String(t.Description),
			Parameters:  oa.FunctionParameters(schema),
		}))
	}

	events := make(chan llm.Event)
	go func() {
		defer close(events)
		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			events <- llm.Event{Type: llm.EventError, Err: err}
			return
		}
		if len(resp.Choices) == 0 {
			events <- llm.Event{Type: llm.EventDone}
			return
		}
		choice := resp.Choices[0]
		if choice.Message.Content != "" {
			events <- llm.Event{Type: llm.EventContent, Delta: choice.Message.Content}
		}
		if len(choice.Message.ToolCalls) > 0 {
			calls := make([]llm.ToolCall, 0, len(choice.Message.ToolCalls))
			for _, tc := range choice.Message.ToolCalls {
				calls = append(calls, llm.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
			}
			events <- llm.Event{Type: llm.EventToolCalls, Calls: calls}
		}
		events <- llm.Event{
			Type:         llm.EventDone,
			FinishReason: string(choice.FinishReason),
			Usage: llm.Usage{
				PromptTokens:     int(resp.Usage.PromptTokens),
				CompletionTokens: int(resp.Usage.CompletionTokens),
				TotalTokens:      int(resp.Usage.TotalTokens),
			},
		}
	}()
	return events, nil
}

// Factory registers the OpenAI provider: cfg keys: api_key, base_url
func Factory(ctx context.Context, cfg map[string]any) (llm.Streamer, error) { // nolint: revive
	_ = ctx
	apiKey := os.Getenv("OPENAI_API_KEY")
	if v, ok := cfg["api_key"].(string); ok && v != "" {
		apiKey = v
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai: missing API key; set OPENAI_API_KEY or cfg.api_key")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if v, ok := cfg["base_url"].(string); ok && v != "" {
		opts = append(opts, option.WithBaseURL(v))
	}
	c := oa.NewClient(opts...)
	return &clientWrapper{client: c}, nil
}

func init() {
	_ = llm.Register("openai", Factory)
}
