// Package gateway provides an nlp.Provider backed by a plain HTTP text
// completion endpoint.
//
// The endpoint receives {"model", "prompt", "max_tokens"} and answers with
// an OpenAI-style completion body, {"choices": [{"text": "..."}]}. Most
// self-hosted inference gateways (vLLM, llama.cpp server, TGI) expose this
// shape on their /v1/completions route.
//
// Usage:
//
//	c, err := gateway.New("http://nlp.internal:8000/v1/completions", "sqlcoder-7b",
//		gateway.WithAPIKey("tok-..."))
//	text, err := c.Generate(ctx, prompt)
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/heravelli/tollgate/internal/nlp"
)

const (
	defaultMaxTokens = 200
	defaultTimeout   = 30 * time.Second

	// maxErrorBody caps how much of an error response is echoed into
	// error messages.
	maxErrorBody = 2048
)

// Client calls a completion endpoint over HTTP.
type Client struct {
	url       string
	model     string
	apiKey    string
	maxTokens int
	httpc     *http.Client
}

// Compile-time interface assertion.
var _ nlp.Provider = (*Client)(nil)

// Option is a functional option for Client.
type Option func(*Client)

// WithAPIKey sets a bearer token sent on every request. Without it no
// Authorization header is sent.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithMaxTokens caps the completion length. Defaults to 200, which is
// plenty for a single SQL statement.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpc = hc
	}
}

// New creates a Client for the given completion endpoint URL and model.
// The URL is used as-is; pass the full route, not a base URL.
func New(url, model string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("gateway: url must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("gateway: model must not be empty")
	}

	c := &Client{
		url:       url,
		model:     model,
		maxTokens: defaultMaxTokens,
		httpc:     &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Name implements nlp.Provider.
func (c *Client) Name() string { return "gateway" }

// completionRequest is the request payload for the completion endpoint.
type completionRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

// completionResponse is the subset of the response body we consume.
type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

// Generate implements nlp.Provider. It posts the prompt to the completion
// endpoint and returns the first choice's text with whitespace trimmed.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:     c.model,
		Prompt:    prompt,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gateway: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gateway: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway: POST %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("gateway: completion endpoint returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var cr completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("gateway: decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("gateway: empty choices in response")
	}
	return strings.TrimSpace(cr.Choices[0].Text), nil
}
