// Package upstream talks to the OpenAI-compatible model endpoint the
// gateway fronts. The gateway never generates text itself; every assistant
// turn comes from here and is verified before it leaves.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/guardline-ai/guardline/pkg/httputil"
)

// DefaultTemperature keeps upstream completions stable across retries.
const DefaultTemperature = 0.7

// Message is one chat turn in the OpenAI wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the OpenAI-compatible completion request body.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatResponse is the subset of the completion response the gateway uses.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string

	httpClient *http.Client
	limiter    *httputil.Limiter
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (tests point this at a stub
// server).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.httpClient = httputil.Client(d)
	}
}

// WithMaxConcurrent caps in-flight upstream calls.
func WithMaxConcurrent(n int) Option {
	return func(cl *Client) {
		cl.limiter = httputil.NewLimiter(n)
	}
}

// NewClient creates an upstream client. baseURL is the API root, e.g.
// "https://api.openai.com/v1"; the completions path is appended.
func NewClient(baseURL, apiKey, model string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: httputil.Client(30 * time.Second),
		limiter:    httputil.NewLimiter(64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Complete sends a chat completion request and returns the full response.
// The request's model falls back to the client's configured one.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("upstream: no messages in request")
	}
	if req.Model == "" {
		req.Model = c.model
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("upstream: waiting for call slot: %w", err)
	}
	defer c.limiter.Release()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream: call failed: %w", err)
	}
	defer httputil.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		errBody, _ := httputil.ReadErrorBody(resp.Body)
		return nil, fmt.Errorf("upstream: status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	data, err := httputil.ReadBody(resp.Body, httputil.MaxResponseSize)
	if err != nil {
		return nil, fmt.Errorf("upstream: read response: %w", err)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(data, &chatResp); err != nil {
		return nil, fmt.Errorf("upstream: decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("upstream: empty response from model")
	}
	return &chatResp, nil
}

// Content returns the first choice's text from a completion response.
func Content(resp *ChatResponse) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}

// LimiterStats exposes in-flight call counts for the health endpoint.
func (c *Client) LimiterStats() httputil.LimiterStats {
	return c.limiter.Stats()
}
