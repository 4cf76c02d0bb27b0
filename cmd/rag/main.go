package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"medrag/internal/app"
	"medrag/internal/config"
	"medrag/internal/logging"
	"medrag/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, template, logPath string
	var k int
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/medrag/config.yaml if not provided)")
	flag.StringVar(&template, "template", "", "Prompt template name (default from config)")
	flag.IntVar(&k, "k", 0, "Number of chunks to retrieve (default from config)")
	flag.StringVar(&logPath, "log", "", "Write logs to this file (default: discard)")
	flag.Parse()

	cfg, used, err := config.LoadFrom(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.Discard()
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		defer f.Close()
		if logger, err = logging.New(f, cfg.Log.Level, cfg.Log.Format); err != nil {
			log.Fatalf("failed to set up logging: %v", err)
		}
	}

	a, err := app.Build(context.Background(), cfg, app.Options{Template: template, Logger: logger})
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	if k == 0 {
		k = cfg.Retrieval.TopK
	}
	info := fmt.Sprintf("%s collection %q via %s, model %s, config %s",
		cfg.VectorStore.Type, cfg.VectorStore.Collection, cfg.Completion.Provider, cfg.Completion.Model, used)
	m := tui.New(a.Service, k, info)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
