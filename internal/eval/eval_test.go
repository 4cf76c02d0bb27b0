package eval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"medrag/internal/completion/mock"
	"medrag/internal/domain"
	"medrag/internal/logging"
	"medrag/internal/service"
)

type fakeRAG struct {
	answers map[string]string
	err     error
}

func (f fakeRAG) Ask(ctx context.Context, q domain.Query) (service.Answer, error) {
	if f.err != nil {
		return service.Answer{}, f.err
	}
	return service.Answer{Response: domain.RagResponse{AnswerText: f.answers[q.Text], Sources: []string{"doc:1:0"}}}, nil
}

func TestParseVerdict(t *testing.T) {
	cases := map[string]bool{
		"true":                true,
		"  TRUE.\n":           true,
		"False":               false,
		"The answer is false": false,
		"true or false":       true,
	}
	for in, want := range cases {
		got, err := ParseVerdict(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %v, %v", in, got, err)
		}
	}
	if _, err := ParseVerdict("maybe"); !errors.Is(err, ErrNoVerdict) {
		t.Fatalf("expected ErrNoVerdict, got %v", err)
	}
}

func TestBuildJudgePrompt(t *testing.T) {
	p := BuildJudgePrompt("Aspirin", "It is {actual_response} aspirin")
	if !strings.Contains(p, `Expected Response: "Aspirin"`) || !strings.Contains(p, `Actual Response: "It is {actual_response} aspirin"`) {
		t.Fatalf("unexpected prompt %q", p)
	}
}

func TestLoadSuite(t *testing.T) {
	s, err := LoadSuite(filepath.Join("testdata", "cases.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.JudgeModel != "gpt-4o" || len(s.Cases) != 2 || s.Cases[0].Expected != "Wondmagegn Taye Abebe" {
		t.Fatalf("unexpected suite %+v", s)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("cases:\n  - question: q\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSuite(bad); err == nil {
		t.Fatalf("expected error for case without expected answer")
	}
}

func TestRunCountsVerdicts(t *testing.T) {
	rag := fakeRAG{answers: map[string]string{"q1": "right", "q2": "wrong", "q3": "odd"}}
	judge := mock.New("")
	judge.Responder = func(ctx context.Context, p string) (domain.Completion, error) {
		switch {
		case strings.Contains(p, `Actual Response: "right"`):
			return domain.Completion{Text: "true"}, nil
		case strings.Contains(p, `Actual Response: "wrong"`):
			return domain.Completion{Text: "false"}, nil
		default:
			return domain.Completion{Text: "unsure"}, nil
		}
	}
	e := NewEvaluator(rag, judge, "judge-model", 5, logging.Discard())
	rep := e.Run(context.Background(), []Case{
		{Name: "a", Question: "q1", Expected: "x"},
		{Name: "b", Question: "q2", Expected: "x"},
		{Name: "c", Question: "q3", Expected: "x"},
	})
	if rep.Passed != 1 || rep.Failed != 1 || rep.Errored != 1 || rep.OK() {
		t.Fatalf("unexpected report %+v", rep)
	}
	if calls := judge.Calls(); len(calls) != 3 || calls[0].Model != "judge-model" {
		t.Fatalf("unexpected judge calls %+v", calls)
	}
}

func TestRunPipelineErrorSkipsJudge(t *testing.T) {
	judge := mock.New("")
	e := NewEvaluator(fakeRAG{err: domain.ErrIndexUnavailable}, judge, "m", 5, logging.Discard())
	rep := e.Run(context.Background(), []Case{{Name: "a", Question: "q", Expected: "x"}})
	if rep.Errored != 1 || !errors.Is(rep.Results[0].Err, domain.ErrIndexUnavailable) {
		t.Fatalf("unexpected report %+v", rep)
	}
	if len(judge.Calls()) != 0 {
		t.Fatalf("judge called after pipeline failure")
	}
}
