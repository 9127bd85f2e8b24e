package llm

import (
	"context"
	"fmt"
	"time"
)

// Provider defines the interface for interacting with text-generation
// backends. Implementations handle protocol-specific details such as request
// formatting, authentication, and response parsing.
type Provider interface {
	// Generate sends one system+user exchange and returns the model text.
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Kind selects the wire shape and default endpoint of a provider.
type Kind string

const (
	KindGemini     Kind = "gemini"
	KindOpenAI     Kind = "openai"
	KindOpenRouter Kind = "openrouter"
	KindGroq       Kind = "groq"
	KindDeepSeek   Kind = "deepseek"
	KindCustom     Kind = "custom"
)

// DefaultTimeout bounds every provider call when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

var defaultBaseURLs = map[Kind]string{
	KindGemini:     "https://generativelanguage.googleapis.com/",
	KindOpenAI:     "https://api.openai.com/v1",
	KindOpenRouter: "https://openrouter.ai/api/v1",
	KindGroq:       "https://api.groq.com/openai/v1",
	KindDeepSeek:   "https://api.deepseek.com/v1",
}

var defaultModels = map[Kind]string{
	KindGemini:     "gemini-2.0-flash",
	KindOpenAI:     "gpt-4o-mini",
	KindOpenRouter: "openai/gpt-4o-mini",
	KindGroq:       "llama-3.3-70b-versatile",
	KindDeepSeek:   "deepseek-chat",
}

// Config holds common configuration for LLM providers.
type Config struct {
	Provider          Kind
	BaseURL           string
	APIKey            string
	Model             string
	MaxTokens         int
	Temperature       float32
	SystemInstruction string
	Timeout           time.Duration
}

// ParseKind maps a configured provider name onto a Kind. Unknown names are
// rejected rather than guessed from the base URL.
func ParseKind(name string) (Kind, error) {
	switch k := Kind(name); k {
	case KindGemini, KindOpenAI, KindOpenRouter, KindGroq, KindDeepSeek, KindCustom:
		return k, nil
	case "":
		return KindGemini, nil
	}
	return "", fmt.Errorf("unknown provider %q", name)
}

// WithDefaults returns a copy of c with the per-provider base URL, model and
// timeout filled in when unset.
func (c Config) WithDefaults() Config {
	if c.Provider == "" {
		c.Provider = KindGemini
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURLs[c.Provider]
	}
	if c.Model == "" {
		c.Model = defaultModels[c.Provider]
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// ChatCompletions reports whether the provider speaks the chat-completions
// wire shape rather than content generation.
func (k Kind) ChatCompletions() bool {
	return k != KindGemini
}
