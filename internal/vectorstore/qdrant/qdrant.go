package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"medrag/internal/domain"
	"medrag/internal/vectorstore"
)

// Storage is a read-only REST client for a Qdrant collection using cosine distance.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

type searchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Search returns the topK nearest points. A missing collection or an unreachable server is
// ErrIndexUnavailable; an existing but empty collection yields no results.
func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.RetrievalResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("qdrant: %w: k must be positive", domain.ErrInvalidInput)
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp searchResponse
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.RetrievalResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.RetrievalResult{Chunk: chunkFromPayload(r.ID, r.Payload), Score: r.Score})
	}
	vectorstore.Rank(results)
	return vectorstore.Limit(results, topK), nil
}

// Close is a no-op; the HTTP client holds no collection state.
func (s *Storage) Close() error { return nil }

func chunkFromPayload(pointID any, payload map[string]any) domain.DocumentChunk {
	chunk := domain.DocumentChunk{Metadata: map[string]any{}}
	for k, v := range payload {
		switch k {
		case "text", "page_content":
			if t, ok := v.(string); ok {
				chunk.Text = t
			}
		case "id", "chunk_id":
			if id, ok := v.(string); ok && (k == "id" || chunk.ID == "") {
				chunk.ID = id
			}
		default:
			switch v.(type) {
			case string, float64, bool:
				chunk.Metadata[k] = v
			}
		}
	}
	if chunk.ID == "" {
		chunk.ID = fmt.Sprint(pointID)
	}
	return chunk
}

func (s *Storage) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("qdrant: %w: %v", domain.ErrInvalidInput, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("qdrant: %w: %v", domain.ErrIndexUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("qdrant POST %s: %w: %v", url, domain.ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("qdrant POST %s: %w: %s %s", url, domain.ErrIndexUnavailable, resp.Status, strings.TrimSpace(string(slurp)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("qdrant POST %s: %w: decode: %v", url, domain.ErrIndexUnavailable, err)
	}
	return nil
}
