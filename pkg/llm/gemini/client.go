// Package gemini implements llm.Provider over the content-generation wire
// shape (contents in, candidates/parts out) using the Google GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/user/forumbot/pkg/llm"
)

// Client implements llm.Provider for Gemini-style backends.
type Client struct {
	config llm.Config
	client *genai.Client
	err    error
}

// New creates a Gemini client. Credential problems are deferred to Generate
// so that they surface as *llm.ProviderError like every other failure.
func New(ctx context.Context, config llm.Config) *Client {
	config = config.WithDefaults()
	c := &Client{config: config}
	if config.APIKey == "" {
		return c
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: config.Timeout},
		HTTPOptions: genai.HTTPOptions{
			BaseURL: config.BaseURL,
		},
	})
	if err != nil {
		c.err = err
		return c
	}
	c.client = client
	return c
}

func (c *Client) fail(status int, reason string, err error) error {
	return &llm.ProviderError{Provider: llm.KindGemini, StatusCode: status, Reason: reason, Err: err}
}

// Generate sends a single-prompt content generation request.
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if c.config.APIKey == "" {
		return nil, c.fail(0, "missing API key", nil)
	}
	if c.err != nil {
		return nil, c.fail(0, "create client: "+c.err.Error(), c.err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	genCfg := &genai.GenerateContentConfig{}
	system := strings.TrimSpace(strings.TrimSpace(c.config.SystemInstruction) + "\n\n" + req.System)
	if system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if c.config.Temperature != 0 {
		genCfg.Temperature = genai.Ptr(c.config.Temperature)
	}
	if c.config.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(c.config.MaxTokens)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, contents, genCfg)
	if err != nil {
		return nil, c.classify(err)
	}

	text := candidateText(resp)
	if text == "" {
		return nil, c.fail(http.StatusOK, "empty candidates in response", nil)
	}

	out := &llm.Response{Content: text, Model: c.config.Model}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func (c *Client) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return c.fail(apiErr.Code, apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return c.fail(apiErrPtr.Code, apiErrPtr.Message, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return c.fail(0, "timeout", err)
	}
	return c.fail(0, fmt.Sprintf("generate content: %v", err), err)
}

// candidateText joins the text parts of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
