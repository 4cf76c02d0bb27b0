// Package mock provides an offline completion client that records every call.
package mock

import (
	"context"
	"sync"

	"medrag/internal/domain"
	"medrag/internal/prompt"
)

// Call is one recorded Complete invocation.
type Call struct {
	Prompt     string
	Model      string
	Credential string
}

// Responder produces the completion for a prompt.
type Responder func(ctx context.Context, prompt string) (domain.Completion, error)

// Client answers locally. With no Responder it echoes the prompt behind Prefix.
type Client struct {
	Prefix    string
	Responder Responder

	mu    sync.Mutex
	calls []Call
}

func New(prefix string) *Client {
	if prefix == "" {
		prefix = "MOCK"
	}
	return &Client{Prefix: prefix}
}

func (c *Client) Complete(ctx context.Context, p, modelID, credential string) (domain.Completion, error) {
	c.mu.Lock()
	c.calls = append(c.calls, Call{Prompt: p, Model: modelID, Credential: credential})
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.Completion{}, err
	}
	if c.Responder != nil {
		return c.Responder(ctx, p)
	}
	text := c.Prefix + ": " + p
	est := prompt.MakeEstimator(4)
	in, out := est(p), est(text)
	return domain.Completion{
		Text:  text,
		Usage: domain.UsageRecord{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}, nil
}

// Calls returns a copy of the recorded calls in arrival order.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}
