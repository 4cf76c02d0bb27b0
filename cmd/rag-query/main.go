package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"

	"medrag/internal/app"
	"medrag/internal/config"
	"medrag/internal/domain"
	"medrag/internal/logging"
)

// exhaustiveK is the retrieval depth selected by -exhaustive.
const exhaustiveK = 30

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	var (
		cfgPath    string
		k          int
		exhaustive bool
		template   string
		provider   string
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/medrag/config.yaml)")
	flag.IntVar(&k, "k", 0, "Number of chunks to retrieve (default from config)")
	flag.BoolVar(&exhaustive, "exhaustive", false, fmt.Sprintf("Retrieve %d chunks", exhaustiveK))
	flag.StringVar(&template, "template", "", "Prompt template name (default from config)")
	flag.StringVar(&provider, "provider", "", "Completion provider: openai, openai-sdk or mock (default from config)")
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "Usage: rag-query [--config=config.yaml] [-k N] [-template NAME] \"question\"")
		return app.ExitOther
	}
	if exhaustive {
		k = exhaustiveK
	}

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.Build(ctx, cfg, app.Options{Template: template, Provider: provider, Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", startupMessage(err))
		return app.ExitCode(err)
	}
	defer a.Close()

	ans, err := a.Service.Ask(ctx, domain.Query{Text: query, K: k})
	if err != nil {
		fmt.Fprintln(os.Stderr, domain.Describe(err))
		return app.ExitCode(err)
	}
	fmt.Println(ans.Response.Decorated())
	return app.ExitOK
}

func startupMessage(err error) string {
	if kind := domain.Kind(err); kind != "unknown" {
		return domain.Describe(err)
	}
	return "startup failed: " + err.Error()
}
