// Package app assembles the query pipeline from an AppConfig.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"medrag/internal/completion/mock"
	"medrag/internal/completion/openai"
	"medrag/internal/completion/openaisdk"
	"medrag/internal/config"
	"medrag/internal/domain"
	"medrag/internal/embedding"
	"medrag/internal/retrieval"
	"medrag/internal/service"
	"medrag/internal/vectorstore"
	"medrag/internal/vectorstore/local"
	"medrag/internal/vectorstore/pgvector"
	"medrag/internal/vectorstore/qdrant"
)

// Options override configuration for one process.
type Options struct {
	Template string
	Provider string
	Logger   *slog.Logger
}

// App owns the opened index and the service built on it.
type App struct {
	Config  *config.AppConfig
	Service *service.RAGServiceImpl
	Index   vectorstore.Storage
}

// Build opens the configured index and wires the pipeline. The index stays open until Close.
func Build(ctx context.Context, cfg *config.AppConfig, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tpl, err := cfg.Template(opts.Template)
	if err != nil {
		return nil, err
	}
	emb, err := embedding.New(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	st, err := OpenIndex(ctx, cfg, emb)
	if err != nil {
		return nil, err
	}
	retriever, err := retrieval.NewClient(emb, st, cfg.SearchTimeout())
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	provider := cfg.Completion.Provider
	if opts.Provider != "" {
		provider = opts.Provider
	}
	llm, err := NewCompletion(cfg.Completion, provider)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	svc, err := service.NewRAGService(retriever, llm, tpl, service.Config{
		Model:           cfg.Completion.Model,
		DefaultK:        cfg.Retrieval.TopK,
		MaxContextChars: cfg.Retrieval.MaxContextChars,
		MaxInputTokens:  cfg.Completion.MaxInputTokens,
		BytesPerToken:   cfg.Completion.BytesPerToken,
	}, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	logger.Info("pipeline ready",
		"embedder", emb.Name(), "store", cfg.VectorStore.Type, "collection", cfg.VectorStore.Collection,
		"provider", provider, "model", cfg.Completion.Model, "template", tpl.Name())
	return &App{Config: cfg, Service: svc, Index: st}, nil
}

func (a *App) Close() error {
	if a == nil || a.Index == nil {
		return nil
	}
	return a.Index.Close()
}

// OpenIndex opens the configured read-only index.
func OpenIndex(ctx context.Context, cfg *config.AppConfig, emb domain.Embedder) (vectorstore.Storage, error) {
	vs := cfg.VectorStore
	switch vs.Type {
	case "local", "":
		if vs.Local == nil {
			return nil, fmt.Errorf("local vector store config missing")
		}
		st, err := local.Open(ctx, vs.Local.PersistDir, vs.Collection, emb)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "qdrant":
		if vs.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        vs.Qdrant.URL,
			APIKey:     vs.Qdrant.APIKey,
			Collection: vs.Collection,
			Timeout:    time.Duration(vs.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	case "pgvector":
		if vs.Pgvector == nil {
			return nil, fmt.Errorf("pgvector config missing")
		}
		st, err := pgvector.Open(ctx, pgvector.Config{DSN: vs.Pgvector.DSN, Table: vs.Pgvector.Table, Collection: vs.Collection})
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", vs.Type)
	}
}

// NewCompletion builds the completion client for provider.
func NewCompletion(cfg config.CompletionConfig, provider string) (domain.CompletionClient, error) {
	timeout := cfg.Timeout()
	switch provider {
	case "openai", "":
		c, err := openai.New(openai.Options{
			BaseURL:     cfg.BaseURL,
			APIKeyEnv:   cfg.APIKeyEnv,
			Timeout:     timeout,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai-sdk":
		var temp *float64
		if cfg.Temperature != 0 {
			t := float64(cfg.Temperature)
			temp = &t
		}
		c, err := openaisdk.New(openaisdk.Options{
			BaseURL:     cfg.BaseURL,
			APIKeyEnv:   cfg.APIKeyEnv,
			Timeout:     timeout,
			Temperature: temp,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "mock":
		return mock.New(""), nil
	default:
		return nil, fmt.Errorf("unknown completion provider: %s", provider)
	}
}

// Exit codes reported by the command-line tools.
const (
	ExitOK = iota
	ExitOther
	ExitEmbedding
	ExitIndex
	ExitAuth
	ExitRateLimit
	ExitConnection
	ExitProvider
)

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, domain.ErrEmbedding):
		return ExitEmbedding
	case errors.Is(err, domain.ErrIndexUnavailable):
		return ExitIndex
	case errors.Is(err, domain.ErrAuthentication):
		return ExitAuth
	case errors.Is(err, domain.ErrRateLimit):
		return ExitRateLimit
	case errors.Is(err, domain.ErrConnection):
		return ExitConnection
	case errors.Is(err, domain.ErrProvider):
		return ExitProvider
	default:
		return ExitOther
	}
}
