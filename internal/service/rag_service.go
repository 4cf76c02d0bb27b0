package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"medrag/internal/contextasm"
	"medrag/internal/domain"
	"medrag/internal/prompt"
)

// Retriever is the Vector Index Client as seen by the pipeline.
type Retriever interface {
	Search(ctx context.Context, queryText string, k int) ([]domain.RetrievalResult, error)
}

// Config holds the read-only per-process settings of the pipeline.
type Config struct {
	Model           string
	DefaultK        int
	MaxContextChars int
	MaxInputTokens  int
	BytesPerToken   int
}

// Answer is the outcome of one pipeline run.
type Answer struct {
	RequestID string
	Response  domain.RagResponse
	Usage     domain.UsageRecord
	Retrieved int
}

// RAGServiceImpl runs retrieval, context assembly, prompt rendering and completion for
// one query at a time. It holds no mutable state, so concurrent calls are independent.
type RAGServiceImpl struct {
	retriever Retriever
	completer domain.CompletionClient
	template  *prompt.Template
	cfg       Config
	logger    *slog.Logger
}

func NewRAGService(retriever Retriever, completer domain.CompletionClient, tpl *prompt.Template, cfg Config, logger *slog.Logger) (*RAGServiceImpl, error) {
	if retriever == nil || completer == nil || tpl == nil {
		return nil, errors.New("service: retriever, completer and template are required")
	}
	if cfg.Model == "" {
		return nil, errors.New("service: model is required")
	}
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RAGServiceImpl{retriever: retriever, completer: completer, template: tpl, cfg: cfg, logger: logger}, nil
}

type requestIDKey struct{}

// WithRequestID makes Ask log and report id instead of generating one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Ask answers q. Every failure is returned to the caller; none is turned into an answer.
// An empty retrieval set is not a failure: the model is still asked, with the template's
// empty-context framing, and the response has no sources.
func (s *RAGServiceImpl) Ask(ctx context.Context, q domain.Query) (Answer, error) {
	id := requestID(ctx)
	log := s.logger.With("comp", "rag", "request_id", id)
	start := time.Now()

	if strings.TrimSpace(q.Text) == "" {
		return Answer{RequestID: id}, fmt.Errorf("ask: %w: empty question", domain.ErrInvalidInput)
	}
	k := q.K
	if k == 0 {
		k = s.cfg.DefaultK
	}
	if k < 0 {
		return Answer{RequestID: id}, fmt.Errorf("ask: %w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}
	log.Info("query", "stage", "start", "k", k, "history", len(q.History), "per_user_credential", q.Credential != "")

	question, dropped, err := s.fitQuestion(q)
	if err != nil {
		return Answer{RequestID: id}, s.fail(log, "budget", start, err)
	}
	if dropped > 0 {
		log.Debug("history trimmed", "dropped_turns", dropped, "max_input_tokens", s.cfg.MaxInputTokens)
	}

	results, err := s.retriever.Search(ctx, q.Text, k)
	if err != nil {
		return Answer{RequestID: id}, s.fail(log, "search", start, err)
	}

	budget := prompt.ContextBudget(s.template, question, s.cfg.MaxInputTokens, s.cfg.BytesPerToken, s.cfg.MaxContextChars)
	contextText, used := "", 0
	if budget >= 0 {
		contextText, used = contextasm.Assemble(results, budget)
	}
	if used < len(results) {
		log.Debug("context truncated", "retrieved", len(results), "used", used, "budget", budget)
	}
	rendered := s.template.Build(contextText, question)

	completion, err := s.completer.Complete(ctx, rendered, s.cfg.Model, q.Credential)
	if err != nil {
		return Answer{RequestID: id}, s.fail(log, "complete", start, err)
	}

	sources := make([]string, used)
	for i := 0; i < used; i++ {
		sources[i] = results[i].Chunk.ID
	}
	log.Info("query", "stage", "finish",
		"dur_ms", time.Since(start).Milliseconds(),
		"hits", len(results), "used", used,
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens,
		"total_tokens", completion.Usage.TotalTokens)

	return Answer{
		RequestID: id,
		Response:  FormatResponse(completion.Text, sources),
		Usage:     completion.Usage,
		Retrieved: len(results),
	}, nil
}

// fitQuestion flattens history into the question, dropping the oldest turns until the
// context-free prompt fits the input budget.
func (s *RAGServiceImpl) fitQuestion(q domain.Query) (string, int, error) {
	history := q.History
	for dropped := 0; ; dropped++ {
		question := FlattenHistory(history, q.Text)
		if prompt.Fits(s.template, question, s.cfg.MaxInputTokens, s.cfg.BytesPerToken) {
			return question, dropped, nil
		}
		if len(history) == 0 {
			return "", dropped, fmt.Errorf("ask: %w: question exceeds input budget of %d tokens", domain.ErrInvalidInput, s.cfg.MaxInputTokens)
		}
		history = history[1:]
	}
}

func (s *RAGServiceImpl) fail(log *slog.Logger, step string, start time.Time, err error) error {
	log.Error("query", "stage", "error", "step", step,
		"kind", domain.Kind(err), "retryable", domain.Retryable(err),
		"dur_ms", time.Since(start).Milliseconds())
	return err
}
