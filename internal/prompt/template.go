package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"medrag/internal/domain"
)

// Recognized placeholders. Each must appear exactly once in a template.
const (
	PlaceholderContext  = "context"
	PlaceholderQuestion = "question"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// TemplateSpec is the configured form of a prompt template.
// EmptyContext is substituted for {context} when retrieval found nothing.
type TemplateSpec struct {
	Name         string `yaml:"-"`
	Text         string `yaml:"text"`
	EmptyContext string `yaml:"empty_context"`
}

type segment struct {
	literal     string
	placeholder string
}

// Template is a validated TemplateSpec, split into literal and placeholder segments so
// rendering substitutes each placeholder once and never rescans substituted text.
type Template struct {
	name         string
	emptyContext string
	segments     []segment
	overhead     string
}

// Parse validates spec: only {context} and {question} are allowed, each exactly once.
func Parse(spec TemplateSpec) (*Template, error) {
	if strings.TrimSpace(spec.Text) == "" {
		return nil, fmt.Errorf("template %q: %w: empty text", spec.Name, domain.ErrInvalidInput)
	}
	counts := map[string]int{}
	var segs []segment
	var literal strings.Builder
	last := 0
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(spec.Text, -1) {
		name := spec.Text[m[2]:m[3]]
		switch name {
		case PlaceholderContext, PlaceholderQuestion:
		default:
			return nil, fmt.Errorf("template %q: %w: unknown placeholder {%s}", spec.Name, domain.ErrInvalidInput, name)
		}
		counts[name]++
		segs = append(segs, segment{literal: spec.Text[last:m[0]]}, segment{placeholder: name})
		literal.WriteString(spec.Text[last:m[0]])
		last = m[1]
	}
	segs = append(segs, segment{literal: spec.Text[last:]})
	literal.WriteString(spec.Text[last:])

	for _, name := range []string{PlaceholderContext, PlaceholderQuestion} {
		if counts[name] != 1 {
			return nil, fmt.Errorf("template %q: %w: {%s} must appear exactly once, found %d",
				spec.Name, domain.ErrInvalidInput, name, counts[name])
		}
	}
	return &Template{
		name:         spec.Name,
		emptyContext: spec.EmptyContext,
		segments:     segs,
		overhead:     literal.String() + spec.EmptyContext,
	}, nil
}

// MustParse is Parse for built-in templates.
func MustParse(spec TemplateSpec) *Template {
	t, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the configured template name.
func (t *Template) Name() string { return t.name }

// Overhead is the template text that is sent regardless of context, used for token budgeting.
func (t *Template) Overhead() string { return t.overhead }

// Build renders the final model input.
func (t *Template) Build(contextText, question string) string {
	if contextText == "" {
		contextText = t.emptyContext
	}
	var sb strings.Builder
	for _, s := range t.segments {
		switch s.placeholder {
		case PlaceholderContext:
			sb.WriteString(contextText)
		case PlaceholderQuestion:
			sb.WriteString(question)
		default:
			sb.WriteString(s.literal)
		}
	}
	return sb.String()
}
