package context

import (
	"log/slog"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter approximates prompt sizes. Without an encoding it falls back
// to one token per four runes.
type TokenCounter struct {
	tokenizer *tiktoken.Tiktoken
}

// NewTokenCounter selects the tokenizer for model, falling back to
// cl100k_base and then to the heuristic when no encoding can be loaded.
func NewTokenCounter(model string) *TokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Warn("tokenizer unavailable, using heuristic token counts", "model", model, "error", err)
			return HeuristicCounter()
		}
	}
	return &TokenCounter{tokenizer: enc}
}

// HeuristicCounter returns a counter that never loads an encoding.
func HeuristicCounter() *TokenCounter {
	return &TokenCounter{}
}

// Count returns the approximate token count of text.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c == nil || c.tokenizer == nil {
		return (utf8.RuneCountInString(text) + 3) / 4
	}
	return len(c.tokenizer.Encode(text, nil, nil))
}

// Truncate cuts text to at most limit tokens.
func (c *TokenCounter) Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if c.Count(text) <= limit {
		return text
	}
	if c == nil || c.tokenizer == nil {
		return string([]rune(text)[:limit*4])
	}
	tokens := c.tokenizer.Encode(text, nil, nil)
	return c.tokenizer.Decode(tokens[:limit])
}
