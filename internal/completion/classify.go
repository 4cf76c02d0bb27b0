// Package completion holds the provider-neutral pieces shared by the completion clients.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"medrag/internal/domain"
)

// FromStatus maps an HTTP status returned by a provider onto the taxonomy.
func FromStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrAuthentication
	case status == http.StatusTooManyRequests:
		return domain.ErrRateLimit
	case status == http.StatusRequestTimeout:
		return domain.ErrConnection
	default:
		return domain.ErrProvider
	}
}

// Transport classifies a failure that carried no HTTP status.
// Caller cancellation passes through; the call's own deadline becomes ErrConnection.
func Transport(ctx context.Context, provider string, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", provider, context.Canceled)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: timed out", provider, domain.ErrConnection)
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return fmt.Errorf("%s: %w: network failure", provider, domain.ErrConnection)
	}
	return fmt.Errorf("%s: %w: unexpected failure", provider, domain.ErrProvider)
}

// Redact removes every non-empty secret from msg and bounds its length.
func Redact(msg string, secrets ...string) string {
	for _, s := range secrets {
		if s != "" {
			msg = strings.ReplaceAll(msg, s, "[redacted]")
		}
	}
	msg = strings.TrimSpace(msg)
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}
