package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-pipeline/internal/api/http/handlers"
	"github.com/spec-kit/ticket-pipeline/internal/app"
	"github.com/spec-kit/ticket-pipeline/internal/auth"
)

// NewServer builds the fiber app for a wired container.
func NewServer(c *app.Container) *fiber.App {
	server := fiber.New(fiber.Config{AppName: c.Config.App.Name})
	RegisterMiddlewares(server, c.Logger, c.Metrics, c.Config.App.RequestTimeout())

	deps := make(map[string]handlers.Pinger, len(c.Dependencies))
	for name, dep := range c.Dependencies {
		deps[name] = dep
	}

	RegisterRoutes(server, RouteConfig{
		Health:         handlers.NewHealthHandler(c.Config.App.Name, c.Config.App.Version, deps, "store"),
		Tickets:        handlers.NewTicketsHandler(c.TicketService, c.Assignment),
		Analytics:      handlers.NewAnalyticsHandler(c.Analytics),
		Mail:           handlers.NewMailHandler(c.Transport),
		AuthMiddleware: auth.NewAuthMiddleware(c.Tokens),
	})
	return server
}
