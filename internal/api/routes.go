package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the API. Queries in flight are canceled when base is done.
func RegisterRoutes(base context.Context, app *fiber.App, rag Asker, topK int, logger *slog.Logger) {
	h := NewHandler(base, rag, topK, logger)

	app.Get("/health", h.Health)
	app.Post("/ask", h.AskQuestion)
}
