// Package eval scores pipeline answers against expected answers with a judge model.
package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"medrag/internal/domain"
	"medrag/internal/service"
)

// JudgePrompt is sent to the judge model for every case.
const JudgePrompt = `
You are evaluating the correctness of an answer based on the expected response and the actual response.

Expected Response: "{expected_response}"

Actual Response: "{actual_response}"

Does the actual response match the expected response in terms of meaning, even if it includes additional context or wording? Please consider the core information and disregard minor additions.

Respond with 'true' if the actual response conveys the expected meaning, and 'false' if it does not.
`

// ErrNoVerdict means the judge reply contained neither "true" nor "false".
var ErrNoVerdict = errors.New("judge reply has no true/false verdict")

// Case is one question with the answer the pipeline is expected to convey.
type Case struct {
	Name     string `yaml:"name"`
	Question string `yaml:"question"`
	Expected string `yaml:"expected"`
}

// Suite is the on-disk case file.
type Suite struct {
	JudgeModel string `yaml:"judge_model"`
	Cases      []Case `yaml:"cases"`
}

// LoadSuite reads a YAML case file.
func LoadSuite(path string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, err
	}
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Suite{}, fmt.Errorf("eval cases %s: %w", path, err)
	}
	if len(s.Cases) == 0 {
		return Suite{}, fmt.Errorf("eval cases %s: no cases", path)
	}
	for i, c := range s.Cases {
		if strings.TrimSpace(c.Question) == "" || strings.TrimSpace(c.Expected) == "" {
			return Suite{}, fmt.Errorf("eval cases %s: case %d needs question and expected", path, i+1)
		}
		if c.Name == "" {
			s.Cases[i].Name = fmt.Sprintf("case-%d", i+1)
		}
	}
	return s, nil
}

// BuildJudgePrompt fills JudgePrompt. Values are inserted literally.
func BuildJudgePrompt(expected, actual string) string {
	r := strings.NewReplacer("{expected_response}", expected, "{actual_response}", actual)
	return r.Replace(JudgePrompt)
}

// ParseVerdict reads the judge reply. "true" wins when both words appear.
func ParseVerdict(reply string) (bool, error) {
	cleaned := strings.ToLower(strings.TrimSpace(reply))
	switch {
	case strings.Contains(cleaned, "true"):
		return true, nil
	case strings.Contains(cleaned, "false"):
		return false, nil
	default:
		return false, ErrNoVerdict
	}
}

// Asker runs the pipeline.
type Asker interface {
	Ask(ctx context.Context, q domain.Query) (service.Answer, error)
}

// Result is the outcome of one case. Err is set when the pipeline or the judge failed.
type Result struct {
	Case    Case
	Answer  domain.RagResponse
	Verdict bool
	Reply   string
	Err     error
}

// Report summarizes a run.
type Report struct {
	Results []Result
	Passed  int
	Failed  int
	Errored int
}

// OK reports whether every case passed.
func (r Report) OK() bool { return r.Failed == 0 && r.Errored == 0 }

// Evaluator runs cases through the pipeline and asks the judge about each answer.
type Evaluator struct {
	rag        Asker
	judge      domain.CompletionClient
	judgeModel string
	k          int
	logger     *slog.Logger
}

func NewEvaluator(rag Asker, judge domain.CompletionClient, judgeModel string, k int, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{rag: rag, judge: judge, judgeModel: judgeModel, k: k, logger: logger.With("comp", "eval")}
}

// Run evaluates cases in order. It stops early only when ctx is canceled.
func (e *Evaluator) Run(ctx context.Context, cases []Case) Report {
	var rep Report
	for _, c := range cases {
		if ctx.Err() != nil {
			break
		}
		res := e.runCase(ctx, c)
		switch {
		case res.Err != nil:
			rep.Errored++
			e.logger.Warn("case", "name", c.Name, "kind", domain.Kind(res.Err), "err", res.Err)
		case res.Verdict:
			rep.Passed++
			e.logger.Info("case", "name", c.Name, "verdict", true)
		default:
			rep.Failed++
			e.logger.Info("case", "name", c.Name, "verdict", false)
		}
		rep.Results = append(rep.Results, res)
	}
	return rep
}

func (e *Evaluator) runCase(ctx context.Context, c Case) Result {
	res := Result{Case: c}
	ans, err := e.rag.Ask(ctx, domain.Query{Text: c.Question, K: e.k})
	if err != nil {
		res.Err = fmt.Errorf("pipeline: %w", err)
		return res
	}
	res.Answer = ans.Response

	reply, err := e.judge.Complete(ctx, BuildJudgePrompt(c.Expected, ans.Response.AnswerText), e.judgeModel, "")
	if err != nil {
		res.Err = fmt.Errorf("judge: %w", err)
		return res
	}
	res.Reply = reply.Text
	res.Verdict, res.Err = ParseVerdict(reply.Text)
	return res
}
