// Package openai implements core.ProviderClient on the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/book-expert/text-improver/internal/core"
	"github.com/book-expert/text-improver/internal/provider"
)

// Defaults for the OpenAI endpoint.
const (
	DefaultURL   = "https://api.openai.com/v1"
	DefaultModel = "gpt-4-turbo-preview"
)

var errNoChoices = errors.New("response contained no choices")

var _ core.ProviderClient = (*Client)(nil)

// Client sends one chat completion request per Improve call.
type Client struct {
	url       string
	model     string
	maxTokens int

	client *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithURL overrides the API base URL, including the /v1 suffix.
func WithURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.url = url
		}
	}
}

// WithModel overrides the model name.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens overrides the completion token limit.
func WithMaxTokens(limit int) Option {
	return func(c *Client) {
		if limit > 0 {
			c.maxTokens = limit
		}
	}
}

// WithClient sets the HTTP client, and with it the request timeout.
func WithClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// New creates a Client.
func New(options ...Option) *Client {
	c := &Client{
		url:       DefaultURL,
		model:     DefaultModel,
		maxTokens: provider.MaxTokens,
	}

	for _, option := range options {
		option(c)
	}

	c.client = provider.HTTPClient(c.client)

	return c
}

// Improve rewrites text in style. The caller checks that the OpenAI
// credential is configured.
func (c *Client) Improve(ctx context.Context, text string, style core.WritingStyle, creds core.Credentials) (string, error) {
	cfg := openai.DefaultConfig(creds.OpenAI.Key())
	cfg.BaseURL = strings.TrimRight(c.url, "/")
	cfg.HTTPClient = c.client

	resp, err := openai.NewClientWithConfig(cfg).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: style.BuildPrompt(text),
			},
		},
	})
	if err != nil {
		return "", provider.Classify(err, statusOf)
	}

	if len(resp.Choices) == 0 {
		return "", core.NewError(core.KindMalformedResponse, errNoChoices)
	}

	return resp.Choices[0].Message.Content, nil
}

func statusOf(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}

	return 0, false
}
