package llm

import (
	"errors"
	"fmt"
)

// Request is a single generation exchange: a system instruction and one user
// prompt.
type Request struct {
	System string `json:"system"`
	Prompt string `json:"prompt"`
}

// Response represents a complete response from an LLM provider.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Usage tracks token consumption for a request/response pair.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ProviderError reports a failed generation call. StatusCode is zero for
// failures that never produced an HTTP response (missing credentials,
// timeouts, transport errors).
type ProviderError struct {
	Provider   Kind
	StatusCode int
	Reason     string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error (status %d): %s", e.Provider, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Reason)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError reports whether err is or wraps a *ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
