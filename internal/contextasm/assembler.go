// Package contextasm joins retrieved chunk texts into the bounded context block of a prompt.
package contextasm

import (
	"strings"

	"medrag/internal/domain"
)

// Delimiter separates chunk texts in the assembled context.
const Delimiter = "\n\n---\n\n"

// Assemble concatenates chunk texts in the given order, separated by Delimiter, and returns the
// text together with the number of leading results it includes.
//
// Chunks are never split: once the next chunk (plus its delimiter) would push the length past
// maxChars, it and every later chunk are dropped. Lengths are measured in bytes. maxChars <= 0
// means no limit.
func Assemble(results []domain.RetrievalResult, maxChars int) (string, int) {
	var sb strings.Builder
	used := 0
	for _, r := range results {
		add := len(r.Chunk.Text)
		if used > 0 {
			add += len(Delimiter)
		}
		if maxChars > 0 && sb.Len()+add > maxChars {
			break
		}
		if used > 0 {
			sb.WriteString(Delimiter)
		}
		sb.WriteString(r.Chunk.Text)
		used++
	}
	return sb.String(), used
}
