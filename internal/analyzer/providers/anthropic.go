package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ibeckermayer/xblueprint/internal/config"
)

// AnthropicVersion labels the version column of the matrix for this provider.
// The SDK pins the wire version itself, so only the model varies.
const AnthropicVersion = "messages"

// AnthropicCaller implements Caller using Anthropic's Claude API
type AnthropicCaller struct {
	client *anthropic.Client
	apiKey string
	params Params
}

// NewAnthropicCaller creates a new Anthropic caller. baseURL may be empty.
func NewAnthropicCaller(apiKey, baseURL string, params Params) *AnthropicCaller {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// The generation matrix owns retries
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicCaller{
		client: &client,
		apiKey: apiKey,
		params: params,
	}
}

func (c *AnthropicCaller) Name() string { return config.ProviderAnthropic }

// Call sends the prompt as a single user message
func (c *AnthropicCaller) Call(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingKey
	}

	maxTokens := int64(c.params.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if c.params.Temperature > 0 {
		params.Temperature = anthropic.Float(c.params.Temperature)
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{
				Provider:   c.Name(),
				StatusCode: apiErr.StatusCode,
				Message:    strings.TrimSpace(apiErr.RawJSON()),
			}
		}
		return "", fmt.Errorf("failed to call Claude API: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
