// Package gemini adapts the Google GenAI SDK to the streaming provider
// interface. Tool calling is not supported; tool definitions in the
// request are ignored.
package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"

	genai "google.golang.org/genai"

	"github.com/wilhg/agentchat/pkg/adapters/llm"
)

type clientWrapper struct {
	client *genai.Client
}

func (c *clientWrapper) Name() string { return "gemini" }

func (c *clientWrapper) Stream(ctx context.Context, req llm.Request) (<-chan llm.Event, error) {
	model := strings.TrimPrefix(req.Model, "google/")

	// Build a single turn from concatenated text for simplicity
	var text string
	for _, m := range req.Messages {
		if m.Content != "" {
			text += m.Content + "\n"
		}
	}
	parts := []*genai.Part{{Text: text}}

	events := make(chan llm.Event)
	go func() {
		defer close(events)
		res, err := c.client.Models.GenerateContent(ctx, model, []*genai.Content{{Parts: parts}}, nil)
		if err != nil {
			events <- llm.Event{Type: llm.EventError, Err: err}
			return
		}
		if out := res.Text(); out != "" {
			events <- llm.Event{Type: llm.EventContent, Delta: out}
		}
		done := llm.Event{Type: llm.EventDone, FinishReason: "stop"}
		if res.UsageMetadata != nil {
			done.Usage = llm.Usage{
				PromptTokens:     int(res.UsageMetadata.PromptTokenCount),
				CompletionTokens: int(res.UsageMetadata.CandidatesTokenCount),
				TotalTokens:      int(res.UsageMetadata.TotalTokenCount),
			}
		}
		events <- done
	}()
	return events, nil
}

// Factory creates a Gemini provider using GOOGLE_API_KEY by default.
func Factory(ctx context.Context, cfg map[string]any) (llm.Streamer, error) { // nolint: revive
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if v, ok := cfg["api_key"].(string); ok && v != "" {
		apiKey = v
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: missing API key; set GOOGLE_API_KEY or cfg.api_key")
	}
	// Prefer Gemini API backend
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &clientWrapper{client: client}, nil
}

func init() {
	_ = llm.Register("gemini", Factory)
}
