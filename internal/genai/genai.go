// Package genai provides reply generation through an OpenAI-compatible chat completions API.
//
// The defaults target Gemini's OpenAI-compatible endpoint.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default configuration constants
const (
	// DefaultModel is the model used when none is configured.
	DefaultModel = "gemini-2.0-flash"
	// DefaultBaseURL is Gemini's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

// Replies returned instead of generated text.
const (
	// FallbackReply is sent when generation fails for any reason.
	FallbackReply = "I'm sorry, I was unable to process your request. Please ask in a different way or try again later."
	// UnavailableReply is sent when no client could be configured at startup.
	UnavailableReply = "I'm sorry, my AI service is currently unavailable. Please try again later."
)

// Error variables for better error handling and testability
var (
	ErrNoChoicesReturned = errors.New("no choices returned")
	ErrEmptyContent      = errors.New("empty completion content")
)

// chatService defines minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client wraps the chat completions service used to generate replies.
type Client struct {
	chat  chatService
	model string
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey  string // API key for the completions endpoint
	Model   string // model name
	BaseURL string // endpoint base URL
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey overrides the API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel sets the model to use for completions.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithBaseURL points the client at a different OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) {
		o.BaseURL = url
	}
}

// NewClient initializes a new GenAI client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{Model: DefaultModel, BaseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	slog.Debug("genai.NewClient: configured", "model", cfg.Model, "base_url", cfg.BaseURL)

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey), option.WithBaseURL(cfg.BaseURL))
	return &Client{chat: &cli.Chat.Completions, model: cfg.Model}, nil
}

// Generate sends prompt as a single user message and returns the first choice's text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(c.model),
	}
	resp, err := c.chat.New(ctx, params)
	if err != nil {
		slog.Error("Client.Generate: completion request failed", "error", err, "model", c.model)
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		slog.Warn("Client.Generate: no choices returned", "model", c.model)
		return "", ErrNoChoicesReturned
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		slog.Warn("Client.Generate: empty content", "model", c.model, "finish_reason", resp.Choices[0].FinishReason)
		return "", ErrEmptyContent
	}
	slog.Debug("Client.Generate: success", "model", c.model, "length", len(text))
	return text, nil
}

// Reply renders the composite prompt and returns generated text. It never fails: any error
// yields FallbackReply, and a nil client yields UnavailableReply.
func (c *Client) Reply(ctx context.Context, in PromptInput) string {
	if c == nil || c.chat == nil {
		slog.Error("Client.Reply: AI service not available")
		return UnavailableReply
	}
	text, err := c.Generate(ctx, BuildPrompt(in))
	if err != nil {
		slog.Error("Client.Reply: generation failed, using fallback", "error", err)
		return FallbackReply
	}
	return text
}
