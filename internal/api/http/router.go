package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coolfix/service-desk/internal/api/http/handlers"
	"github.com/coolfix/service-desk/internal/observability"
	"github.com/coolfix/service-desk/internal/session"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Chat    *handlers.ChatHandler
	Analyze *handlers.AnalyzeHandler
	Tickets *handlers.TicketsHandler
	Session *session.Middleware
	Metrics *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	chat := app.Group("/chat")
	chat.Post("/sessions", cfg.Chat.StartSession)
	chat.Delete("/sessions", cfg.Session.Handle, cfg.Chat.EndSession)
	chat.Post("/messages", cfg.Session.Handle, cfg.Chat.SendMessage)

	app.Post("/analyze", cfg.Analyze.Analyze)

	tickets := app.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id/status", cfg.Tickets.ChangeStatus)
	tickets.Post("/:id/communications", cfg.Tickets.AddCommunication)
}
