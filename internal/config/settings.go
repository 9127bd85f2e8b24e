package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/user/forumbot/internal/personality"
	"github.com/user/forumbot/pkg/llm"
)

// Keys read from the per-invocation settings table.
const (
	KeyProvider          = "ai_provider"
	KeyModel             = "ai_model"
	KeyTemperature       = "ai_temperature"
	KeyBaseURL           = "ai_base_url"
	KeyAPIKey            = "ai_api_key"
	KeySystemInstruction = "system_instruction"
)

// ErrMissingCredentials is returned when no API key can be found for the
// selected provider.
var ErrMissingCredentials = errors.New("missing provider credentials")

// Settings is the typed view of one invocation's settings.
type Settings struct {
	Personality personality.Config
	LLM         llm.Config
}

// ResolveSettings merges the flat settings table over the process config.
// Table values win. Base URL, model and the generic API key from the process
// config only apply when it names the same provider.
func (c *Config) ResolveSettings(raw map[string]string) (Settings, error) {
	get := func(key string) string { return strings.TrimSpace(raw[key]) }

	kind, err := llm.ParseKind(firstNonEmpty(get(KeyProvider), c.LLM.Provider))
	if err != nil {
		return Settings{}, err
	}
	sameProvider := strings.EqualFold(c.LLM.Provider, string(kind))

	out := llm.Config{
		Provider:          kind,
		MaxTokens:         c.LLM.MaxTokens,
		Temperature:       c.LLM.Temperature,
		SystemInstruction: firstNonEmpty(get(KeySystemInstruction), c.LLM.SystemInstruction),
		Timeout:           c.LLMTimeout(),
	}

	out.Model = get(KeyModel)
	out.BaseURL = get(KeyBaseURL)
	out.APIKey = firstNonEmpty(get(KeyAPIKey), c.LLM.ProviderKeys[string(kind)])
	if sameProvider {
		out.Model = firstNonEmpty(out.Model, c.LLM.Model)
		out.BaseURL = firstNonEmpty(out.BaseURL, c.LLM.BaseURL)
		out.APIKey = firstNonEmpty(out.APIKey, c.LLM.APIKey)
	}

	if t := get(KeyTemperature); t != "" {
		v, err := strconv.ParseFloat(t, 32)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid %s %q: %w", KeyTemperature, t, err)
		}
		out.Temperature = float32(min(max(v, 0), 2))
	}

	if out.APIKey == "" {
		return Settings{}, fmt.Errorf("%w for %s", ErrMissingCredentials, kind)
	}

	return Settings{
		Personality: personality.FromSettings(raw),
		LLM:         out.WithDefaults(),
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
