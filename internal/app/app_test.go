package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"medrag/internal/config"
	"medrag/internal/domain"
	"medrag/internal/logging"
	"medrag/internal/prompt"
)

func localConfig(t *testing.T, manifest, chunks string) *config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "medicine-research")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "manifest.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "chunks.jsonl"), []byte(chunks), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(filepath.Join(dir, "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.VectorStore.Local.PersistDir = dir
	cfg.Completion.Provider = "mock"
	return cfg
}

func TestBuildAndAskOffline(t *testing.T) {
	cfg := localConfig(t, "collection: medicine-research\nembedder: tfidf\ncount: 2\n",
		`{"id":"doc1:1:0","text":"Statins lower LDL cholesterol."}`+"\n"+
			`{"id":"doc2:1:0","text":"Antibiotics do not treat viral infections."}`+"\n")

	a, err := Build(context.Background(), cfg, Options{Template: prompt.Original, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close()

	ans, err := a.Service.Ask(context.Background(), domain.Query{Text: "Do statins lower cholesterol?", K: 1})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if len(ans.Response.Sources) != 1 || ans.Response.Sources[0] != "doc1:1:0" {
		t.Fatalf("sources %v", ans.Response.Sources)
	}
	if !strings.HasPrefix(ans.Response.AnswerText, "MOCK: ") {
		t.Fatalf("answer %q", ans.Response.AnswerText)
	}
}

func TestBuildMissingIndex(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.VectorStore.Local.PersistDir = t.TempDir()
	cfg.Completion.Provider = "mock"
	_, err = Build(context.Background(), cfg, Options{Logger: logging.Discard()})
	if !errors.Is(err, domain.ErrIndexUnavailable) || ExitCode(err) != ExitIndex {
		t.Fatalf("expected index unavailable, got %v", err)
	}
}

func TestBuildUnknownTemplate(t *testing.T) {
	cfg := localConfig(t, "collection: medicine-research\ncount: 0\n", "")
	if _, err := Build(context.Background(), cfg, Options{Template: "nope", Logger: logging.Discard()}); err == nil {
		t.Fatalf("expected template error")
	}
}

func TestNewCompletionProviders(t *testing.T) {
	cfg := config.CompletionConfig{APIKeyEnv: "MEDRAG_TEST_NO_KEY", Temperature: 0.2}
	for _, p := range []string{"openai", "openai-sdk", "mock"} {
		if _, err := NewCompletion(cfg, p); err != nil {
			t.Fatalf("%s: %v", p, err)
		}
	}
	if _, err := NewCompletion(cfg, "bard"); err == nil {
		t.Fatalf("expected unknown provider error")
	}
}

func TestNewCompletionHonorsConfiguredTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)
	t.Setenv("MEDRAG_TEST_KEY", "k")

	cfg := config.CompletionConfig{BaseURL: srv.URL, APIKeyEnv: "MEDRAG_TEST_KEY", TimeoutSecs: 1}
	c, err := NewCompletion(cfg, "openai")
	if err != nil {
		t.Fatalf("new completion: %v", err)
	}
	start := time.Now()
	_, err = c.Complete(context.Background(), "p", "gpt-4o", "")
	if !errors.Is(err, domain.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("configured 1s timeout not applied, call took %s", elapsed)
	}
}

func TestExitCode(t *testing.T) {
	cases := map[error]int{
		nil:                        ExitOK,
		domain.ErrEmbedding:        ExitEmbedding,
		domain.ErrIndexUnavailable: ExitIndex,
		domain.ErrAuthentication:   ExitAuth,
		domain.ErrRateLimit:        ExitRateLimit,
		domain.ErrConnection:       ExitConnection,
		domain.ErrProvider:         ExitProvider,
		domain.ErrInvalidInput:     ExitOther,
		context.Canceled:           ExitOther,
	}
	for err, want := range cases {
		wrapped := err
		if err != nil {
			wrapped = fmt.Errorf("wrapped: %w", err)
		}
		if got := ExitCode(wrapped); got != want {
			t.Fatalf("%v: got %d, want %d", err, got, want)
		}
	}
}
