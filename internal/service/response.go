package service

import (
	"strings"

	"medrag/internal/domain"
)

// FormatResponse pairs generated text with the ids of the chunks used as context.
// sources keep their order and duplicates.
func FormatResponse(text string, sources []string) domain.RagResponse {
	out := make([]string, len(sources))
	copy(out, sources)
	return domain.RagResponse{AnswerText: text, Sources: out}
}

// FlattenHistory folds earlier turns into the question slot of the prompt, oldest first.
func FlattenHistory(history []domain.Turn, question string) string {
	if len(history) == 0 {
		return question
	}
	var sb strings.Builder
	sb.WriteString("Conversation so far:\n")
	for _, t := range history {
		role := "User"
		if strings.EqualFold(t.Role, "assistant") {
			role = "Assistant"
		}
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(strings.TrimSpace(t.Content))
		sb.WriteByte('\n')
	}
	sb.WriteString("\nCurrent question: ")
	sb.WriteString(question)
	return sb.String()
}
