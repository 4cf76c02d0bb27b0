package api

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"medrag/internal/domain"
	"medrag/internal/service"
)

// Asker is the pipeline as seen by the HTTP layer.
type Asker interface {
	Ask(ctx context.Context, q domain.Query) (service.Answer, error)
}

// TurnJSON is one earlier exchange sent by the client.
type TurnJSON struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Query   string     `json:"query"`
	TopK    int        `json:"top_k"`
	History []TurnJSON `json:"history"`
}

type UsageJSON struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AskResponse is the body of a successful POST /ask.
type AskResponse struct {
	Answer    string    `json:"answer"`
	Sources   []string  `json:"sources"`
	Usage     UsageJSON `json:"usage"`
	RequestID string    `json:"request_id"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"request_id"`
}

// Handler holds handler dependencies.
type Handler struct {
	base   context.Context
	rag    Asker
	topK   int
	logger *slog.Logger
}

func NewHandler(base context.Context, rag Asker, topK int, logger *slog.Logger) *Handler {
	if base == nil {
		base = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{base: base, rag: rag, topK: topK, logger: logger.With("comp", "api")}
}

// Health is a liveness probe.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.SendString("ok")
}

// AskQuestion runs one query. A bearer token, when present, is used as the model
// credential for this request only.
func (h *Handler) AskQuestion(c *fiber.Ctx) error {
	reqID := uuid.NewString()
	c.Set("X-Request-ID", reqID)

	var req AskRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		return h.fail(c, reqID, domain.ErrInvalidInput, `invalid request, expected JSON: {"query":"..."}`)
	}
	if req.TopK < 0 {
		return h.fail(c, reqID, domain.ErrInvalidInput, "top_k must be positive")
	}
	k := req.TopK
	if k == 0 {
		k = h.topK
	}
	q := domain.Query{Text: req.Query, K: k, Credential: bearer(c.Get(fiber.HeaderAuthorization))}
	for _, t := range req.History {
		q.History = append(q.History, domain.Turn{Role: t.Role, Content: t.Content})
	}

	// fasthttp does not cancel the request context on client disconnect, so the
	// query is bound to the server's lifetime instead.
	ctx, cancel := context.WithCancel(service.WithRequestID(c.UserContext(), reqID))
	defer cancel()
	stop := context.AfterFunc(h.base, cancel)
	defer stop()
	ans, err := h.rag.Ask(ctx, q)
	if err != nil {
		return h.fail(c, reqID, err, domain.Describe(err))
	}
	return c.JSON(AskResponse{
		Answer:  ans.Response.AnswerText,
		Sources: ans.Response.Sources,
		Usage: UsageJSON{
			PromptTokens:     ans.Usage.PromptTokens,
			CompletionTokens: ans.Usage.CompletionTokens,
			TotalTokens:      ans.Usage.TotalTokens,
		},
		RequestID: reqID,
	})
}

func (h *Handler) fail(c *fiber.Ctx, reqID string, err error, msg string) error {
	status := StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.Warn("ask failed", "request_id", reqID, "kind", domain.Kind(err), "status", status)
	}
	return c.Status(status).JSON(ErrorResponse{
		Error:     msg,
		Kind:      domain.Kind(err),
		Retryable: domain.Retryable(err),
		RequestID: reqID,
	})
}

// StatusFor maps a pipeline error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrAuthentication):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrRateLimit):
		return fiber.StatusTooManyRequests
	case errors.Is(err, domain.ErrProvider):
		return fiber.StatusBadGateway
	case errors.Is(err, domain.ErrEmbedding), errors.Is(err, domain.ErrIndexUnavailable), errors.Is(err, domain.ErrConnection):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return fiber.StatusInternalServerError
	}
}

func bearer(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
