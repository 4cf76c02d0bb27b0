package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medrag/internal/domain"
	"medrag/internal/vectorstore"
)

// sizer is implemented by indexes that know their size without a search.
type sizer interface {
	Len() int
}

// Client embeds query text and searches the persisted index with the same embedder
// that produced the indexed vectors.
type Client struct {
	embedder domain.Embedder
	index    domain.VectorIndex
	timeout  time.Duration
}

// NewClient wires an embedder to an index. timeout bounds embedding plus search; 0 disables it.
func NewClient(embedder domain.Embedder, index domain.VectorIndex, timeout time.Duration) (*Client, error) {
	if embedder == nil {
		return nil, errors.New("retrieval: embedder must not be nil")
	}
	if index == nil {
		return nil, errors.New("retrieval: index must not be nil")
	}
	return &Client{embedder: embedder, index: index, timeout: timeout}, nil
}

// Search returns at most k results, best match first with ties broken by chunk id.
// An empty index yields an empty slice, not an error.
func (c *Client) Search(ctx context.Context, queryText string, k int) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("retrieval: %w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}
	if s, ok := c.index.(sizer); ok && s.Len() == 0 {
		return []domain.RetrievalResult{}, nil
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	vec, err := c.embedder.Embed(ctx, queryText)
	if err != nil {
		if errors.Is(err, domain.ErrEmbedding) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("retrieval: %w: %v", domain.ErrEmbedding, err)
	}

	results, err := c.index.Search(ctx, vec, k)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("retrieval: %w: search exceeded %s", domain.ErrIndexUnavailable, c.timeout)
		case errors.Is(err, context.Canceled), errors.Is(err, domain.ErrIndexUnavailable), errors.Is(err, domain.ErrInvalidInput):
			return nil, err
		default:
			return nil, fmt.Errorf("retrieval: %w: %v", domain.ErrIndexUnavailable, err)
		}
	}
	if results == nil {
		results = []domain.RetrievalResult{}
	}
	vectorstore.Rank(results)
	return vectorstore.Limit(results, k), nil
}
