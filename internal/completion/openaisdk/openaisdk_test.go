package openaisdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"medrag/internal/domain"
)

func newClient(t *testing.T, status int, body string) (*Client, *int32, *atomic.Value) {
	t.Helper()
	var hits int32
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		auth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	t.Setenv("TEST_SDK_KEY", "sk-default")
	c, err := New(Options{BaseURL: srv.URL, APIKeyEnv: "TEST_SDK_KEY", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	return c, &hits, &auth
}

func TestCompleteSuccess(t *testing.T) {
	c, _, auth := newClient(t, http.StatusOK, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"answer"}}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`)
	got, err := c.Complete(context.Background(), "p", "gpt-4o", "sk-user")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Text != "answer" || got.Usage.TotalTokens != 4 {
		t.Fatalf("unexpected completion %+v", got)
	}
	if auth.Load() != "Bearer sk-user" {
		t.Fatalf("per-call credential not used: %v", auth.Load())
	}
}

func TestAbsentUsageIsProviderError(t *testing.T) {
	c, _, _ := newClient(t, http.StatusOK, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"answer"}}]}`)
	if _, err := c.Complete(context.Background(), "p", "gpt-4o", ""); !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}

func TestRateLimitIsNotRetried(t *testing.T) {
	c, hits, _ := newClient(t, http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	_, err := c.Complete(context.Background(), "p", "gpt-4o", "")
	if !errors.Is(err, domain.ErrRateLimit) {
		t.Fatalf("expected ErrRateLimit, got %v", err)
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Fatalf("expected one attempt, got %d", n)
	}
}

func TestAuthenticationError(t *testing.T) {
	c, _, _ := newClient(t, http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	if _, err := c.Complete(context.Background(), "p", "gpt-4o", "sk-x"); !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}
