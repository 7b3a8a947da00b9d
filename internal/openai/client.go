// Package openai is a minimal chat-completions client.
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
	"time"
)

// Errors returned by the client.
var (
	ErrNotConfigured = errors.New("openai api key is not configured: set OPENAI_API_KEY")
	ErrEmptyResponse = errors.New("openai: empty completion")
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("openai api error: status %d type %s: %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("openai api error: status %d: %s", e.StatusCode, e.Message)
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Message is one role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a single completion call.
type ChatRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Options configures a Client.
type Options struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client posts chat completions.
type Client struct {
	http HTTPClient
	opts Options
}

// New creates a Client. A nil client uses http.DefaultClient.
func New(client HTTPClient, opts Options) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Client{http: client, opts: opts}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.opts.APIKey) != ""
}

// Model returns the model name sent with each request.
func (c *Client) Model() string {
	return c.opts.Model
}

// Complete sends the messages and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, r ChatRequest) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	maxTokens := r.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.opts.MaxTokens
	}
	payload := struct {
		Model       string    `json:"model"`
		Messages    []Message `json:"messages"`
		Temperature float64   `json:"temperature"`
		MaxTokens   int       `json:"max_tokens,omitempty"`
	}{
		Model:       c.opts.Model,
		Messages:    r.Messages,
		Temperature: r.Temperature,
		MaxTokens:   maxTokens,
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return "", fmt.Errorf("encode completion payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/chat/completions", buf)
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", decodeAPIError(resp)
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(response.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		apiErr.Type = payload.Error.Type
		apiErr.Message = payload.Error.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
