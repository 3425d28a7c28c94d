// Package completion talks to an OpenAI-compatible chat completions endpoint.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jdelaire/annoyray/core/analysis"
)

const (
	DefaultModel   = "gpt-4"
	DefaultTimeout = 60 * time.Second
)

var (
	ErrNoChoices    = errors.New("completion returned no choices")
	ErrEmptyContent = errors.New("completion returned empty content")
)

// Options configures a Client.
type Options struct {
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for a proxy or a test server.
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client issues chat completion requests. It is safe for concurrent use and
// is not modified after New.
type Client struct {
	api   openai.Client
	model string
}

// New creates a Client. Retries are disabled: every Complete call is a
// single HTTP request.
func New(opts Options) *Client {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: opts.Timeout}),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &Client{
		api:   openai.NewClient(reqOpts...),
		model: opts.Model,
	}
}

// Model returns the model identifier sent with every request.
func (c *Client) Model() string { return c.model }

// Complete sends the system prompt and user text and returns the first
// choice's content.
func (c *Client) Complete(ctx context.Context, req analysis.Request) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserText),
		},
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", ErrEmptyContent
	}
	return content, nil
}
