package domain

import (
	"context"
	"fmt"
	"strings"
)

// DocumentChunk is a bounded span of a source document as stored in the index.
// ID is stable and globally unique, e.g. "<source>:<page>:<chunk_index>".
type DocumentChunk struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// RetrievalResult is a chunk matched by a similarity search.
// Score is a similarity: higher is better, across every index backend.
type RetrievalResult struct {
	Chunk DocumentChunk
	Score float64
}

// Turn is one prior exchange in a conversation.
type Turn struct {
	Role    string
	Content string
}

// Query is a single chat turn submitted to the pipeline.
// An empty Credential selects the process-wide default.
type Query struct {
	Text       string
	K          int
	Credential string
	History    []Turn
}

// UsageRecord carries token accounting reported by the completion provider.
type UsageRecord struct {
	TotalTokens      int
	PromptTokens     int
	CompletionTokens int
}

// Completion is the generated text of one model call.
type Completion struct {
	Text  string
	Usage UsageRecord
}

// RagResponse is the externally visible answer with its source chunk ids in retrieval rank.
type RagResponse struct {
	AnswerText string
	Sources    []string
}

// Decorated renders the answer the way the command-line entry point prints it.
func (r RagResponse) Decorated() string {
	return fmt.Sprintf("Response: %s\nSources: [%s]", r.AnswerText, strings.Join(r.Sources, ", "))
}

// Embedder converts free text into a fixed-dimension vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// CorpusPreparer is implemented by embedders whose vector space is fitted on the corpus.
type CorpusPreparer interface {
	Prepare(corpus []string) error
}

// VectorIndex is a read-only persisted similarity-search index.
type VectorIndex interface {
	Search(ctx context.Context, vector []float64, topK int) ([]RetrievalResult, error)
	Close() error
}

// CompletionClient sends a single-turn prompt to a language model.
type CompletionClient interface {
	Complete(ctx context.Context, prompt, modelID, credential string) (Completion, error)
}
