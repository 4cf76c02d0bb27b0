package prompt

// Built-in template names.
const (
	StrictMedical  = "strict-medical"
	Original       = "original"
	Conversational = "conversational"
)

// Builtins returns the templates shipped with the binary, keyed by name.
func Builtins() map[string]TemplateSpec {
	return map[string]TemplateSpec{
		StrictMedical: {
			Name: StrictMedical,
			Text: `You are a clinical research assistant answering questions about a fixed collection of medical research documents.

Answer strictly from the context below. Do not introduce outside knowledge. Use precise medical terminology as it appears in the documents. If the context does not contain the answer, say that the documents do not cover it.

Context:
{context}

---

Question: {question}
`,
			EmptyContext: "No relevant passages were found in the document collection.",
		},
		Original: {
			Name: Original,
			Text: `
Answer the question based only on the following context:

{context}

---

Answer the question based on the above context: {question}
`,
			EmptyContext: "(no context available)",
		},
		Conversational: {
			Name: Conversational,
			Text: `You are a friendly assistant for a medical research document collection.

Use the context below when it is relevant and say so when it is not. Keep answers short.

Context:
{context}

User: {question}
`,
			EmptyContext: "(no matching documents)",
		},
	}
}
