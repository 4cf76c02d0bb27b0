package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"medrag/internal/api"
	"medrag/internal/app"
	"medrag/internal/config"
	"medrag/internal/logging"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, addr string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file")
	flag.StringVar(&addr, "addr", "", "Listen address (default from config)")
	flag.Parse()

	cfg, _, err := config.LoadFrom(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}

	a, err := app.Build(context.Background(), cfg, app.Options{Logger: logger})
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := fiber.New(fiber.Config{DisableStartupMessage: true})
	api.RegisterRoutes(ctx, srv, a.Service, cfg.Retrieval.TopK, logger)

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown()
	}()

	logger.Info("server started", "addr", addr)
	if err := srv.Listen(addr); err != nil {
		logger.Error("server stopped", "err", err)
	}
}
