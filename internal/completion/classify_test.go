package completion

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"medrag/internal/domain"
)

func TestFromStatus(t *testing.T) {
	cases := map[int]error{
		401: domain.ErrAuthentication,
		403: domain.ErrAuthentication,
		429: domain.ErrRateLimit,
		408: domain.ErrConnection,
		400: domain.ErrProvider,
		500: domain.ErrProvider,
		503: domain.ErrProvider,
	}
	for status, want := range cases {
		if got := FromStatus(status); !errors.Is(got, want) {
			t.Fatalf("status %d: got %v, want %v", status, got, want)
		}
	}
}

func TestTransport(t *testing.T) {
	ctx := context.Background()
	if err := Transport(ctx, "p", context.DeadlineExceeded); !errors.Is(err, domain.ErrConnection) {
		t.Fatalf("deadline: %v", err)
	}
	if err := Transport(ctx, "p", &net.OpError{Op: "dial", Err: errors.New("refused")}); !errors.Is(err, domain.ErrConnection) {
		t.Fatalf("net error: %v", err)
	}
	if err := Transport(ctx, "p", errors.New("weird")); !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("other: %v", err)
	}
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if err := Transport(canceled, "p", context.Canceled); !errors.Is(err, context.Canceled) || domain.Retryable(err) {
		t.Fatalf("canceled: %v", err)
	}
}

func TestRedact(t *testing.T) {
	got := Redact("Incorrect API key provided: sk-123", "sk-123", "")
	if strings.Contains(got, "sk-123") || !strings.Contains(got, "[redacted]") {
		t.Fatalf("unexpected %q", got)
	}
	if len(Redact(strings.Repeat("x", 1000))) > 310 {
		t.Fatalf("message not bounded")
	}
}
