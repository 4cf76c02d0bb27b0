// Package openaisdk implements the completion client on the official OpenAI Go SDK, which
// exposes field presence and so can tell an absent usage object from a zero one.
package openaisdk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"medrag/internal/completion"
	"medrag/internal/domain"
)

const provider = "openai-sdk"

type Options struct {
	BaseURL     string
	APIKeyEnv   string
	Timeout     time.Duration
	Temperature *float64
}

type Client struct {
	client      openai.Client
	defaultKey  string
	timeout     time.Duration
	temperature *float64
}

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.APIKeyEnv == "" {
		opts.APIKeyEnv = "OPENAI_API_KEY"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	key := os.Getenv(opts.APIKeyEnv)
	client := openai.NewClient(
		option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")+"/"),
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	)
	return &Client{client: client, defaultKey: key, timeout: opts.Timeout, temperature: opts.Temperature}, nil
}

// Complete sends prompt as one user message with SDK retries disabled.
func (c *Client) Complete(ctx context.Context, prompt, modelID, credential string) (domain.Completion, error) {
	if strings.TrimSpace(prompt) == "" {
		return domain.Completion{}, fmt.Errorf("%s: %w: empty prompt", provider, domain.ErrInvalidInput)
	}
	key := credential
	if key == "" {
		key = c.defaultKey
	}
	if key == "" {
		return domain.Completion{}, fmt.Errorf("%s: %w: no credential configured", provider, domain.ErrAuthentication)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelID),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	}
	if c.temperature != nil {
		params.Temperature = openai.Float(*c.temperature)
	}
	resp, err := c.client.Chat.Completions.New(ctx, params, option.WithAPIKey(key))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			kind := completion.FromStatus(apiErr.StatusCode)
			return domain.Completion{}, fmt.Errorf("%s: %w: status %d", provider, kind, apiErr.StatusCode)
		}
		return domain.Completion{}, completion.Transport(ctx, provider, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return domain.Completion{}, fmt.Errorf("%s: %w: response has no content", provider, domain.ErrProvider)
	}
	if !resp.JSON.Usage.Valid() {
		return domain.Completion{}, fmt.Errorf("%s: %w: response carries no usage", provider, domain.ErrProvider)
	}
	return domain.Completion{
		Text: resp.Choices[0].Message.Content,
		Usage: domain.UsageRecord{
			TotalTokens:      int(resp.Usage.TotalTokens),
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}
