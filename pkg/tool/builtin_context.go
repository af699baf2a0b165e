package tool

import (
	"context"
	"fmt"
	"strings"
)

// contextLimits maps model identifiers to context window sizes in tokens.
var contextLimits = map[string]int{
	"openai/gpt-4o":                  128000,
	"openai/gpt-4o-mini":             128000,
	"openai/gpt-4-turbo":             128000,
	"openai/gpt-3.5-turbo":           16385,
	"anthropic/claude-3.5-sonnet":    200000,
	"anthropic/claude-3-opus":        200000,
	"anthropic/claude-3-sonnet":      200000,
	"anthropic/claude-3-haiku":       200000,
	"google/gemini-pro":              32768,
	"meta-llama/llama-3-70b-instruct": 8192,
}

const defaultContextLimit = 128000

// ContextLimit returns the context window size for a model, defaulting to
// 128k for unknown models.
func ContextLimit(model string) int {
	if limit, ok := contextLimits[model]; ok {
		return limit
	}
	return defaultContextLimit
}

const contextInfoDoc = `Get information about current context window usage.`

type contextInfoTool struct{ desc Descriptor }

func newContextInfoTool() (Tool, error) {
	d, err := BuildDescriptor("get_context_info", contextInfoDoc, nil)
	if err != nil {
		return nil, err
	}
	return &contextInfoTool{desc: d}, nil
}

func (t *contextInfoTool) Describe() Descriptor { return t.desc }

func (t *contextInfoTool) Invoke(_ context.Context, inv Invocation, _ map[string]any) (string, error) {
	if inv.Session == nil {
		return "Error: Session context not available", nil
	}
	model := inv.Session.ModelName()
	limit := ContextLimit(model)
	prompt, completion, total := inv.Session.ContextUsage()

	if total == 0 {
		return fmt.Sprintf("No usage data available yet.\nModel: %s\nContext limit: %d tokens", model, limit), nil
	}
	percent := float64(total) / float64(limit) * 100
	lines := []string{
		"Context Window Usage:",
		fmt.Sprintf("  Model: %s", model),
		fmt.Sprintf("  Context limit: %d tokens", limit),
		fmt.Sprintf("  Prompt tokens: %d", prompt),
		fmt.Sprintf("  Completion tokens: %d", completion),
		fmt.Sprintf("  Total tokens: %d", total),
		fmt.Sprintf("  Usage: %.1f%%", percent),
		fmt.Sprintf("  Remaining: %d tokens", limit-total),
	}
	return strings.Join(lines, "\n"), nil
}
