package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"medrag/internal/app"
	"medrag/internal/config"
	"medrag/internal/eval"
	"medrag/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	var cfgPath, casesPath, judgeModel, judgeProvider string
	var k int
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file")
	flag.StringVar(&casesPath, "cases", "eval_cases.yaml", "YAML file with {question, expected} cases")
	flag.StringVar(&judgeModel, "judge-model", "", "Judge model (default: judge_model from the case file, then completion.model)")
	flag.StringVar(&judgeProvider, "judge-provider", "", "Judge completion provider (default from config)")
	flag.IntVar(&k, "k", 0, "Number of chunks to retrieve (default from config)")
	flag.Parse()

	cfg, _, err := config.LoadFrom(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return app.ExitOther
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		return app.ExitOther
	}
	suite, err := eval.LoadSuite(casesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load cases: %v\n", err)
		return app.ExitOther
	}
	if judgeModel == "" {
		judgeModel = suite.JudgeModel
	}
	if judgeModel == "" {
		judgeModel = cfg.Completion.Model
	}
	if judgeProvider == "" {
		judgeProvider = cfg.Completion.Provider
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.Build(ctx, cfg, app.Options{Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		return app.ExitCode(err)
	}
	defer a.Close()
	judge, err := app.NewCompletion(cfg.Completion, judgeProvider)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create judge: %v\n", err)
		return app.ExitOther
	}

	rep := eval.NewEvaluator(a.Service, judge, judgeModel, k, logger).Run(ctx, suite.Cases)
	for _, r := range rep.Results {
		switch {
		case r.Err != nil:
			fmt.Printf("ERROR %-20s %v\n", r.Case.Name, r.Err)
		case r.Verdict:
			fmt.Printf("\033[92mPASS\033[0m  %-20s %s\n", r.Case.Name, r.Answer.Decorated())
		default:
			fmt.Printf("\033[91mFAIL\033[0m  %-20s %s\n", r.Case.Name, r.Answer.Decorated())
		}
	}
	fmt.Printf("\n%d passed, %d failed, %d errored\n", rep.Passed, rep.Failed, rep.Errored)
	if !rep.OK() {
		return app.ExitOther
	}
	return app.ExitOK
}
