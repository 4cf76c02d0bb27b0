package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"medrag/internal/completion"
	"medrag/internal/domain"
)

const provider = "openai"

// Options configures the client. The default credential is read from APIKeyEnv and
// may be empty when every caller supplies its own.
type Options struct {
	BaseURL     string
	APIKeyEnv   string
	Timeout     time.Duration
	Temperature float32
}

// Client is a single-turn chat completion client for OpenAI-compatible endpoints.
// It never retries: one Complete call is at most one HTTP request.
type Client struct {
	baseURL     string
	defaultKey  string
	hc          *http.Client
	timeout     time.Duration
	temperature float32
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
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		defaultKey:  os.Getenv(opts.APIKeyEnv),
		hc:          &http.Client{},
		timeout:     opts.Timeout,
		temperature: opts.Temperature,
	}, nil
}

// Complete sends prompt as one user message. credential, when non-empty, is used for this
// call only; otherwise the process default applies.
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

	cfg := goopenai.DefaultConfig(key)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = c.hc
	client := goopenai.NewClientWithConfig(cfg)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       modelID,
		Messages:    []goopenai.ChatCompletionMessage{{Role: goopenai.ChatMessageRoleUser, Content: prompt}},
		Temperature: c.temperature,
	})
	if err != nil {
		return domain.Completion{}, classify(ctx, err, key)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return domain.Completion{}, fmt.Errorf("%s: %w: response has no content", provider, domain.ErrProvider)
	}
	u := resp.Usage
	if u.TotalTokens == 0 && u.PromptTokens == 0 && u.CompletionTokens == 0 {
		return domain.Completion{}, fmt.Errorf("%s: %w: response carries no usage", provider, domain.ErrProvider)
	}
	return domain.Completion{
		Text: resp.Choices[0].Message.Content,
		Usage: domain.UsageRecord{
			TotalTokens:      u.TotalTokens,
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
		},
	}, nil
}

func classify(ctx context.Context, err error, key string) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		kind := completion.FromStatus(apiErr.HTTPStatusCode)
		if errors.Is(kind, domain.ErrAuthentication) {
			return fmt.Errorf("%s: %w: status %d", provider, kind, apiErr.HTTPStatusCode)
		}
		return fmt.Errorf("%s: %w: status %d: %s", provider, kind, apiErr.HTTPStatusCode, completion.Redact(apiErr.Message, key))
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return fmt.Errorf("%s: %w: status %d", provider, completion.FromStatus(reqErr.HTTPStatusCode), reqErr.HTTPStatusCode)
	}
	return completion.Transport(ctx, provider, err)
}
