package domain

import (
	"context"
	"errors"
)

// Error taxonomy shared by every pipeline stage. Adapters wrap these with %w.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrEmbedding        = errors.New("embedding failed")
	ErrIndexUnavailable = errors.New("index unavailable")
	ErrAuthentication   = errors.New("authentication failed")
	ErrRateLimit        = errors.New("rate limited")
	ErrConnection       = errors.New("connection failed")
	ErrProvider         = errors.New("provider error")
)

// Kind names the taxonomy class of err for logs and API payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrEmbedding):
		return "embedding"
	case errors.Is(err, ErrIndexUnavailable):
		return "index_unavailable"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrRateLimit):
		return "rate_limit"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrProvider):
		return "provider"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unknown"
	}
}

// Retryable reports whether the caller may retry the same query with backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrConnection)
}

// Describe returns the message shown to an end user for err.
// It never includes provider payloads, so no credential can be echoed.
func Describe(err error) string {
	switch Kind(err) {
	case "":
		return ""
	case "invalid_input":
		return "The question is empty or the request is malformed."
	case "embedding":
		return "Cannot process the query right now."
	case "index_unavailable":
		return "The document index is unavailable. Check the index configuration."
	case "authentication":
		return "The language model rejected the API credential."
	case "rate_limit":
		return "The language model is rate limiting requests. Try again shortly."
	case "connection":
		return "Could not reach the language model. Try again."
	case "provider":
		return "The language model returned an unusable response."
	case "canceled":
		return "The query was canceled."
	default:
		return "Unexpected error while answering the question."
	}
}
