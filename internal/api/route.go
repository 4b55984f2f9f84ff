package api

import (
	v1 "github.com/contactrelay/mailgateway/internal/api/v1"
	"github.com/gofiber/fiber/v2"
)

func SetupRoutes(app *fiber.App, handler *v1.Handler) {
	app.Get("/ping", handler.Pong)

	app.Get("/health", handler.Health)
	app.Get("/health/live", handler.Live)
	app.Get("/health/ready", handler.Ready)

	app.Post("/v1/messages", handler.CreateMessage)
	app.Get("/v1/messages/stats", handler.GetStats)
	app.Get("/v1/messages/:id", handler.GetMessage)
	app.Get("/v1/messages", handler.GetMessages)

	app.Post("/v1/admin/retry-sweep", handler.RetrySweep)
	app.Post("/v1/admin/cleanup", handler.Cleanup)
}
