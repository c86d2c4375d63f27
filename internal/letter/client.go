package letter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// ErrNoTextService is returned when no text service is configured
var ErrNoTextService = errors.New("text generation service not configured")

// Client sends a single-turn prompt to a text-generation service and returns
// the free-text reply
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AnthropicConfig holds Messages API settings
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
}

// AnthropicClient calls the Anthropic Messages API
type AnthropicClient struct {
	client anthropic.Client
	cfg    AnthropicConfig
	logger *zap.Logger
}

// NewAnthropicClient creates a Messages API client
func NewAnthropicClient(cfg AnthropicConfig, logger *zap.Logger) *AnthropicClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
		logger: logger,
	}
}

// Complete sends prompt as one user turn and returns the first text block
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: c.cfg.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("messages api: %w", err)
	}

	c.logger.Debug("letter generated",
		zap.String("model", string(msg.Model)),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", nil
}

// UnavailableClient fails every call. It stands in when no API key is set.
type UnavailableClient struct{}

// Complete always returns ErrNoTextService
func (UnavailableClient) Complete(context.Context, string) (string, error) {
	return "", ErrNoTextService
}

// ClientFunc adapts a function to Client
type ClientFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f
func (f ClientFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
