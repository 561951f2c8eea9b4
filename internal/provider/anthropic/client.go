// Package anthropic implements core.ProviderClient on the Anthropic messages API.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/book-expert/text-improver/internal/core"
	"github.com/book-expert/text-improver/internal/provider"
)

// Defaults for the Anthropic endpoint.
const (
	DefaultURL   = "https://api.anthropic.com/"
	DefaultModel = "claude-3-sonnet-20240229"
)

var errNoTextBlock = errors.New("response contained no text block")

var _ core.ProviderClient = (*Client)(nil)

// Client sends one rewrite request per Improve call.
type Client struct {
	url       string
	model     string
	maxTokens int

	client *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithURL overrides the API base URL.
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

// Improve rewrites text in style. The caller checks that the Anthropic
// credential is configured.
func (c *Client) Improve(ctx context.Context, text string, style core.WritingStyle, creds core.Credentials) (string, error) {
	sdk := anthropic.NewClient(c.options(creds.Anthropic.Key())...)

	resp, err := sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(style.BuildPrompt(text))),
		},
	})
	if err != nil {
		return "", provider.Classify(err, statusOf)
	}

	var (
		result strings.Builder
		found  bool
	)

	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			result.WriteString(variant.Text)

			found = true
		}
	}

	if !found {
		return "", core.NewError(core.KindMalformedResponse, errNoTextBlock)
	}

	return result.String(), nil
}

func (c *Client) options(key string) []option.RequestOption {
	url := strings.TrimRight(c.url, "/") + "/"

	return []option.RequestOption{
		option.WithBaseURL(url),
		option.WithHTTPClient(c.client),
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
}

func statusOf(err error) (int, bool) {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}

	return 0, false
}
