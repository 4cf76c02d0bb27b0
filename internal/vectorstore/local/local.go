package local

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"medrag/internal/domain"
	"medrag/internal/vectorstore"
)

const (
	ManifestFile = "manifest.yaml"
	ChunksFile   = "chunks.jsonl"

	maxRecordBytes = 16 << 20
)

// Manifest describes a persisted collection.
type Manifest struct {
	Collection string `yaml:"collection"`
	Embedder   string `yaml:"embedder"`
	Dimension  int    `yaml:"dimension"`
	Count      int    `yaml:"count"`
}

// Record is one line of chunks.jsonl. Vector may be omitted for corpus-fitted embedders.
type Record struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Vector   []float64      `json:"vector,omitempty"`
}

// Storage is a directory-backed collection loaded into memory and searched by brute-force
// cosine similarity. It never writes to the directory.
type Storage struct {
	mu        sync.RWMutex
	closed    bool
	name      string
	dimension int
	vectors   [][]float64
	chunks    []domain.DocumentChunk
}

// Open loads <dir>/<collection>. Records without a stored vector are embedded with emb,
// which is first prepared on the collection's texts when it is corpus-fitted.
func Open(ctx context.Context, dir, collection string, emb domain.Embedder) (*Storage, error) {
	root := filepath.Join(dir, collection)
	man, err := readManifest(filepath.Join(root, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("local index %q: %w: %v", collection, domain.ErrIndexUnavailable, err)
	}
	if man.Embedder != "" && emb != nil && man.Embedder != emb.Name() {
		return nil, fmt.Errorf("local index %q: %w: built with embedder %q, configured %q",
			collection, domain.ErrIndexUnavailable, man.Embedder, emb.Name())
	}
	records, err := readRecords(filepath.Join(root, ChunksFile), man.Count)
	if err != nil {
		return nil, fmt.Errorf("local index %q: %w: %v", collection, domain.ErrIndexUnavailable, err)
	}
	if man.Count != 0 && man.Count != len(records) {
		return nil, fmt.Errorf("local index %q: %w: manifest lists %d chunks, found %d",
			collection, domain.ErrIndexUnavailable, man.Count, len(records))
	}

	s := &Storage{name: collection, dimension: man.Dimension}
	if len(records) == 0 {
		return s, nil
	}
	if err := s.load(ctx, records, emb); err != nil {
		return nil, fmt.Errorf("local index %q: %w: %v", collection, domain.ErrIndexUnavailable, err)
	}
	return s, nil
}

func (s *Storage) load(ctx context.Context, records []Record, emb domain.Embedder) error {
	seen := make(map[string]struct{}, len(records))
	texts := make([]string, len(records))
	missing := false
	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record %d has no id", i+1)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("duplicate chunk id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
		texts[i] = r.Text
		if len(r.Vector) == 0 {
			missing = true
		}
	}
	if missing && emb == nil {
		return errors.New("records without vectors and no embedder configured")
	}
	// Corpus-fitted embedders are fitted on every open, stored vectors or not,
	// so query vectors land in the same space as the indexed ones.
	fitted := false
	if p, ok := emb.(domain.CorpusPreparer); ok {
		if err := p.Prepare(texts); err != nil {
			return err
		}
		fitted = true
	}

	s.vectors = make([][]float64, len(records))
	s.chunks = make([]domain.DocumentChunk, len(records))
	for i, r := range records {
		vec := r.Vector
		if len(vec) == 0 {
			v, err := emb.Embed(ctx, r.Text)
			if err != nil {
				return fmt.Errorf("embedding chunk %q: %v", r.ID, err)
			}
			vec = v
		}
		if s.dimension == 0 {
			s.dimension = len(vec)
		}
		if len(vec) != s.dimension {
			return fmt.Errorf("chunk %q has dimension %d, index dimension is %d", r.ID, len(vec), s.dimension)
		}
		for _, x := range vec {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return fmt.Errorf("chunk %q has a non-finite vector component", r.ID)
			}
		}
		s.vectors[i] = vec
		s.chunks[i] = domain.DocumentChunk{ID: r.ID, Text: r.Text, Metadata: r.Metadata}
	}
	if fitted && s.dimension != emb.Dimension() {
		return fmt.Errorf("index dimension %d does not match embedder %s dimension %d", s.dimension, emb.Name(), emb.Dimension())
	}
	return nil
}

// Len returns the number of indexed chunks.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Search returns up to topK chunks by descending cosine similarity, ties by id.
func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.RetrievalResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("local index: %w: k must be positive", domain.ErrInvalidInput)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("local index %q: %w: closed", s.name, domain.ErrIndexUnavailable)
	}
	if len(s.chunks) == 0 {
		return []domain.RetrievalResult{}, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("local index %q: %w: query dimension %d, index dimension %d",
			s.name, domain.ErrIndexUnavailable, len(vector), s.dimension)
	}
	results := make([]domain.RetrievalResult, len(s.chunks))
	for i := range s.vectors {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		results[i] = domain.RetrievalResult{Chunk: s.chunks[i], Score: vectorstore.Cosine(s.vectors[i], vector)}
	}
	vectorstore.Rank(results)
	return vectorstore.Limit(results, topK), nil
}

// Close releases the loaded collection.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.vectors = nil
	s.chunks = nil
	return nil
}

func readManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("manifest: %w", err)
	}
	return m, nil
}

func readRecords(path string, expected int) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && expected == 0 {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), maxRecordBytes)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", ChunksFile, line, err)
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
