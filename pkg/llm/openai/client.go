package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/user/forumbot/pkg/llm"
)

// Client implements the llm.Provider interface for OpenAI-compatible
// chat-completions APIs (OpenAI, OpenRouter, Groq, DeepSeek, self-hosted).
type Client struct {
	config     llm.Config
	httpClient *http.Client
}

// New creates a new OpenAI-compatible client with the given configuration.
func New(config llm.Config) *Client {
	config = config.WithDefaults()
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// chatRequest is the OpenAI chat completions request body.
type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []requestMessage `json:"messages"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature *float32         `json:"temperature,omitempty"`
}

type requestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the OpenAI chat completions response body.
type chatResponse struct {
	Model   string        `json:"model"`
	Choices []choice      `json:"choices"`
	Usage   responseUsage `json:"usage"`
}

type choice struct {
	Message requestMessage `json:"message"`
}

type responseUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (c *Client) fail(status int, reason string, err error) error {
	return &llm.ProviderError{Provider: c.config.Provider, StatusCode: status, Reason: reason, Err: err}
}

// Generate sends a [system, user] chat completion and returns the first choice.
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if c.config.APIKey == "" {
		return nil, c.fail(0, "missing API key", nil)
	}

	system := req.System
	if c.config.SystemInstruction != "" {
		system = strings.TrimSpace(c.config.SystemInstruction + "\n\n" + system)
	}

	reqBody := chatRequest{
		Model: c.config.Model,
		Messages: []requestMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: req.Prompt},
		},
	}

	if c.config.MaxTokens > 0 {
		reqBody.MaxTokens = c.config.MaxTokens
	}

	if c.config.Temperature != 0 {
		temp := c.config.Temperature
		reqBody.Temperature = &temp
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	url := strings.TrimRight(c.config.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, c.fail(0, "timeout", err)
		}
		return nil, c.fail(0, "sending request: "+err.Error(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(resp.StatusCode, "reading response: "+err.Error(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.fail(resp.StatusCode, string(respBody), nil)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, c.fail(resp.StatusCode, "parsing response: "+err.Error(), err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, c.fail(resp.StatusCode, "no choices in response", nil)
	}

	model := chatResp.Model
	if model == "" {
		model = c.config.Model
	}
	return &llm.Response{
		Content: chatResp.Choices[0].Message.Content,
		Model:   model,
		Usage: llm.Usage{
			InputTokens:  chatResp.Usage.PromptTokens,
			OutputTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:  chatResp.Usage.TotalTokens,
		},
	}, nil
}
