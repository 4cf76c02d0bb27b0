package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"medrag/internal/domain"
	"medrag/internal/vectorstore"
)

// Expected schema (populated by the ingestion side, never written here):
//
//	CREATE TABLE chunks (
//		collection TEXT NOT NULL,
//		chunk_id   TEXT NOT NULL,
//		text       TEXT NOT NULL,
//		metadata   JSONB,
//		embedding  vector(N),
//		PRIMARY KEY (collection, chunk_id)
//	);

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Config struct {
	DSN        string
	Table      string
	Collection string
}

// Storage searches a pgvector table by cosine distance.
type Storage struct {
	db         *sql.DB
	query      string
	collection string
}

// Open connects and verifies the database is reachable.
func Open(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Table == "" {
		cfg.Table = "chunks"
	}
	if !identRe.MatchString(cfg.Table) {
		return nil, fmt.Errorf("pgvector: %w: invalid table name %q", domain.ErrIndexUnavailable, cfg.Table)
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgvector: %w: %v", domain.ErrIndexUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classify(err)
	}
	return &Storage{db: db, query: searchQuery(cfg.Table), collection: cfg.Collection}, nil
}

func searchQuery(table string) string {
	return fmt.Sprintf(`
		SELECT chunk_id, text, COALESCE(metadata::text, '{}'), embedding <=> $1::vector AS distance
		FROM %s
		WHERE collection = $2
		ORDER BY distance ASC, chunk_id ASC
		LIMIT $3`, pq.QuoteIdentifier(table))
}

// Search returns up to topK chunks; score is 1 - cosine distance.
func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.RetrievalResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("pgvector: %w: k must be positive", domain.ErrInvalidInput)
	}
	rows, err := s.db.QueryContext(ctx, s.query, VectorLiteral(vector), s.collection, topK)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var res []domain.RetrievalResult
	for rows.Next() {
		var (
			c        domain.DocumentChunk
			meta     string
			distance float64
		)
		if err := rows.Scan(&c.ID, &c.Text, &meta, &distance); err != nil {
			return nil, classify(err)
		}
		if meta != "" && meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
				return nil, fmt.Errorf("pgvector: %w: chunk %q metadata: %v", domain.ErrIndexUnavailable, c.ID, err)
			}
		}
		res = append(res, domain.RetrievalResult{Chunk: c, Score: 1 - distance})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	if res == nil {
		res = []domain.RetrievalResult{}
	}
	vectorstore.Rank(res)
	return res, nil
}

func (s *Storage) Close() error { return s.db.Close() }

// VectorLiteral formats v in pgvector's text input syntax.
func VectorLiteral(v []float64) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	sb.WriteByte(']')
	return sb.String()
}

// classify maps driver failures onto the taxonomy; cancellation passes through untouched.
func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("pgvector: %w: %s (%s)", domain.ErrIndexUnavailable, pqErr.Message, pqErr.Code.Name())
	}
	return fmt.Errorf("pgvector: %w: %v", domain.ErrIndexUnavailable, err)
}
