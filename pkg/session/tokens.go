package session

import (
	"strings"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// EstimateTokens counts tokens in text with the model's tokenizer.
// OpenRouter-style vendor prefixes ("openai/gpt-4o-mini") are stripped
// before lookup. Unknown models fall back to cl100k_base; if even that
// fails, a rough 4-bytes-per-token estimate is returned.
func EstimateTokens(model, text string) int {
	name := model
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return len(text) / 4
		}
	}
	return len(enc.Encode(text, nil, nil))
}
