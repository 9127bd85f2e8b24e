package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	Listen        string `json:"listen"`
	MaxConcurrent int    `json:"max_concurrent"`
	BotUserID     string `json:"bot_user_id"`
	Database      struct {
		URL                 string `json:"url"`
		ExecLogURL          string `json:"execlog_url"`
		ClaimTable          string `json:"claim_table"`
		ExecutionTable      string `json:"execution_table"`
		StoreTimeoutSeconds int    `json:"store_timeout_seconds"`
	} `json:"database"`
	Redis struct {
		URL        string `json:"url"`
		Prefix     string `json:"prefix"`
		TTLSeconds int    `json:"ttl_seconds"`
		LogCap     int64  `json:"log_cap"`
	} `json:"redis"`
	LLM struct {
		Provider          string            `json:"provider"`
		BaseURL           string            `json:"base_url"`
		APIKey            string            `json:"api_key"`
		ProviderKeys      map[string]string `json:"provider_keys,omitempty"`
		Model             string            `json:"model"`
		MaxTokens         int               `json:"max_tokens"`
		Temperature       float32           `json:"temperature"`
		SystemInstruction string            `json:"system_instruction"`
		TimeoutSeconds    int               `json:"timeout_seconds"`
	} `json:"llm"`
	Claims struct {
		StaleAfterSeconds int    `json:"stale_after_seconds"`
		SweepSchedule     string `json:"sweep_schedule"`
	} `json:"claims"`
	Context struct {
		HistoryBudget int `json:"history_budget"`
	} `json:"context"`
}

func defaults() *Config {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".forumbot"),
		MaxConcurrent: 8,
	}
	cfg.LogLevel = "info"
	cfg.Listen = ":8080"
	cfg.Database.ClaimTable = "ai_processing_log"
	cfg.Database.ExecutionTable = "ai_execution_logs"
	cfg.Database.StoreTimeoutSeconds = 5
	cfg.Redis.Prefix = "forumbot"
	cfg.Redis.TTLSeconds = 86400
	cfg.Redis.LogCap = 1000
	cfg.LLM.Provider = "gemini"
	cfg.LLM.MaxTokens = 1024
	cfg.LLM.Temperature = 0.7
	cfg.LLM.TimeoutSeconds = 30
	cfg.Claims.StaleAfterSeconds = 600
	cfg.Claims.SweepSchedule = "@every 5m"
	cfg.Context.HistoryBudget = 300
	return cfg
}

// DefaultPath returns ~/.forumbot/config.json.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".forumbot", "config.json")
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides file values from the environment (highest precedence).
func applyEnv(cfg *Config) {
	set := func(dst *string, name string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	set(&cfg.BotUserID, "BOT_USER_ID")
	set(&cfg.Database.URL, "DATABASE_URL")
	set(&cfg.Database.ExecLogURL, "EXECLOG_DATABASE_URL")
	set(&cfg.Redis.URL, "REDIS_URL")
	set(&cfg.LLM.Provider, "LLM_PROVIDER")
	set(&cfg.LLM.APIKey, "LLM_API_KEY")
	set(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	set(&cfg.LLM.Model, "LLM_MODEL")
	set(&cfg.Listen, "FORUMBOT_LISTEN")

	for provider, name := range map[string]string{
		"gemini": "GEMINI_API_KEY",
		"openai": "OPENAI_API_KEY",
	} {
		if v := os.Getenv(name); v != "" {
			if cfg.LLM.ProviderKeys == nil {
				cfg.LLM.ProviderKeys = make(map[string]string)
			}
			cfg.LLM.ProviderKeys[provider] = v
		}
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (c *Config) StoreTimeout() time.Duration { return seconds(c.Database.StoreTimeoutSeconds) }
func (c *Config) LLMTimeout() time.Duration   { return seconds(c.LLM.TimeoutSeconds) }
func (c *Config) StaleAfter() time.Duration   { return seconds(c.Claims.StaleAfterSeconds) }
func (c *Config) RedisTTL() time.Duration     { return seconds(c.Redis.TTLSeconds) }

// Save writes cfg to path atomically, creating the parent directory.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg into its generic JSON shape.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues returns every setting as a flat dot-key map, optionally with
// secrets masked.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return m, nil
}

// GetValue returns the value of a dot-separated key from the file at path.
// The file is created with defaults if it does not exist.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	m, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	v, ok := Flatten(m)[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue writes a dot-separated key into the file at path. Values that
// parse as JSON (numbers, booleans) are stored typed, anything else as a
// string. The file must already exist.
func SetValue(path, key, value string) error {
	m, err := readRaw(path)
	if err != nil {
		return err
	}
	flat := Flatten(m)

	var typed any
	if err := json.Unmarshal([]byte(value), &typed); err != nil {
		typed = value
	}
	flat[key] = typed

	data, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(path, data)
}
