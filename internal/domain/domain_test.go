package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindAndRetryable(t *testing.T) {
	cases := []struct {
		err       error
		kind      string
		retryable bool
	}{
		{fmt.Errorf("embed: %w", ErrEmbedding), "embedding", false},
		{fmt.Errorf("open: %w", ErrIndexUnavailable), "index_unavailable", false},
		{fmt.Errorf("openai: %w", ErrAuthentication), "authentication", false},
		{fmt.Errorf("openai: %w", ErrRateLimit), "rate_limit", true},
		{fmt.Errorf("openai: %w", ErrConnection), "connection", true},
		{fmt.Errorf("openai: %w", ErrProvider), "provider", false},
		{fmt.Errorf("ask: %w", context.Canceled), "canceled", false},
		{errors.New("boom"), "unknown", false},
	}
	for _, c := range cases {
		if got := Kind(c.err); got != c.kind {
			t.Fatalf("Kind(%v) = %q, want %q", c.err, got, c.kind)
		}
		if got := Retryable(c.err); got != c.retryable {
			t.Fatalf("Retryable(%v) = %v, want %v", c.err, got, c.retryable)
		}
		if Describe(c.err) == "" {
			t.Fatalf("Describe(%v) is empty", c.err)
		}
	}
}

func TestDescribeDistinguishesIndexFromEmbedding(t *testing.T) {
	if Describe(ErrIndexUnavailable) == Describe(ErrEmbedding) {
		t.Fatalf("index and embedding failures must read differently")
	}
}

func TestDecorated(t *testing.T) {
	r := RagResponse{AnswerText: "PDPH.", Sources: []string{"doc1:1:0", "doc2:3:1"}}
	got := r.Decorated()
	want := "Response: PDPH.\nSources: [doc1:1:0, doc2:3:1]"
	if got != want {
		t.Fatalf("Decorated() = %q, want %q", got, want)
	}
	empty := RagResponse{AnswerText: "none"}.Decorated()
	if !strings.HasSuffix(empty, "Sources: []") {
		t.Fatalf("unexpected empty decoration %q", empty)
	}
}
