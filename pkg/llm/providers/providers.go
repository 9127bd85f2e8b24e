// Package providers selects a concrete llm.Provider from configuration.
package providers

import (
	"context"

	"github.com/user/forumbot/pkg/llm"
	"github.com/user/forumbot/pkg/llm/gemini"
	"github.com/user/forumbot/pkg/llm/openai"
)

// New returns the provider for cfg.Provider. Selection is by provider kind
// only; the base URL never influences which wire shape is used.
func New(ctx context.Context, cfg llm.Config) (llm.Provider, error) {
	kind, err := llm.ParseKind(string(cfg.Provider))
	if err != nil {
		return nil, &llm.ProviderError{Provider: cfg.Provider, Reason: err.Error(), Err: err}
	}
	cfg.Provider = kind
	cfg = cfg.WithDefaults()
	if cfg.APIKey == "" {
		return nil, &llm.ProviderError{Provider: kind, Reason: "missing API key"}
	}
	if kind == llm.KindCustom && cfg.BaseURL == "" {
		return nil, &llm.ProviderError{Provider: kind, Reason: "custom provider requires a base URL"}
	}
	if kind.ChatCompletions() {
		return openai.New(cfg), nil
	}
	return gemini.New(ctx, cfg), nil
}
