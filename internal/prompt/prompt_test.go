package prompt

import (
	"errors"
	"strings"
	"testing"

	"medrag/internal/domain"
)

func TestBuiltinsParse(t *testing.T) {
	for name, spec := range Builtins() {
		tpl, err := Parse(spec)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		out := tpl.Build("CTX", "QUESTION")
		if strings.Count(out, "CTX") != 1 || strings.Count(out, "QUESTION") != 1 {
			t.Fatalf("%s: placeholders not substituted once: %q", name, out)
		}
	}
}

func TestParseRejectsBadTemplates(t *testing.T) {
	bad := []TemplateSpec{
		{Name: "unknown", Text: "{context} {question} {history}"},
		{Name: "missing", Text: "only {question}"},
		{Name: "twice", Text: "{context} {question} {context}"},
		{Name: "empty", Text: "  "},
	}
	for _, spec := range bad {
		if _, err := Parse(spec); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", spec.Name, err)
		}
	}
}

func TestBuildIsLiteralSinglePass(t *testing.T) {
	tpl := MustParse(TemplateSpec{Name: "t", Text: "C:{context}|Q:{question}"})
	got := tpl.Build("text mentioning {question} literally", "what is {context}?")
	want := "C:text mentioning {question} literally|Q:what is {context}?"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuildEmptyContextFraming(t *testing.T) {
	tpl := MustParse(Builtins()[StrictMedical])
	got := tpl.Build("", "Which block causes headache?")
	if !strings.Contains(got, "No relevant passages were found") {
		t.Fatalf("empty context not framed: %q", got)
	}
	if strings.Contains(got, "{context}") {
		t.Fatalf("placeholder left in output")
	}
}

func TestEstimator(t *testing.T) {
	est := MakeEstimator(4)
	if est("") != 0 || est("abc") != 1 || est("abcde") != 2 {
		t.Fatalf("unexpected estimates")
	}
	if MakeEstimator(0)("abcdefgh") != 2 {
		t.Fatalf("default bytes per token should be 4")
	}
}

func TestContextBudget(t *testing.T) {
	tpl := MustParse(TemplateSpec{Name: "t", Text: "{context}{question}", EmptyContext: ""})
	if got := ContextBudget(tpl, "abcd", 0, 4, 500); got != 500 {
		t.Fatalf("no token bound: got %d", got)
	}
	// 10 tokens total, question uses 1 token, leaves 9 tokens = 36 bytes.
	if got := ContextBudget(tpl, "abcd", 10, 4, 0); got != 36 {
		t.Fatalf("token bound: got %d", got)
	}
	if got := ContextBudget(tpl, "abcd", 10, 4, 20); got != 20 {
		t.Fatalf("char cap should win: got %d", got)
	}
	if got := ContextBudget(tpl, strings.Repeat("q", 80), 10, 4, 0); got >= 0 {
		t.Fatalf("expected no room, got %d", got)
	}
}

func TestFits(t *testing.T) {
	tpl := MustParse(TemplateSpec{Name: "t", Text: "ctx:{context}{question}", EmptyContext: "none"})
	// overhead "ctx:none" is 2 tokens
	if !Fits(tpl, strings.Repeat("q", 1000), 0, 4) {
		t.Fatalf("no token bound should always fit")
	}
	if !Fits(tpl, strings.Repeat("q", 32), 10, 4) {
		t.Fatalf("2 + 8 tokens should fit in 10")
	}
	if Fits(tpl, strings.Repeat("q", 33), 10, 4) {
		t.Fatalf("2 + 9 tokens should not fit in 10")
	}
}
