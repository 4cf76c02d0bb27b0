package vectorstore

import (
	"math"
	"sort"

	"medrag/internal/domain"
)

// Storage is a read-only similarity-search index over document chunks.
type Storage = domain.VectorIndex

// Rank orders results best match first: descending score, ties by chunk id ascending.
// NaN scores sort after every number. Every backend applies it so identical queries
// return identical sequences.
func Rank(results []domain.RetrievalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		si, sj := results[i].Score, results[j].Score
		if ni, nj := math.IsNaN(si), math.IsNaN(sj); ni != nj {
			return nj
		} else if !ni && si != sj {
			return si > sj
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
}

// Limit truncates ranked results to at most topK entries.
func Limit(results []domain.RetrievalResult, topK int) []domain.RetrievalResult {
	if topK >= 0 && len(results) > topK {
		return results[:topK]
	}
	return results
}

// Cosine returns the cosine similarity of a and b, or 0 if either is a zero vector.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
