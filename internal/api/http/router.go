package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/civic-issues/internal/api/http/handlers"
	"github.com/spec-kit/civic-issues/internal/auth"
	"github.com/spec-kit/civic-issues/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Auth            *handlers.AuthHandler
	Tickets         *handlers.TicketsHandler
	AdminTickets    *handlers.AdminTicketsHandler
	AuthMiddleware  *auth.AuthMiddleware
	RateLimiter     *RateLimiter
	MetricsGatherer prometheus.Gatherer
	UploadDir       string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.MetricsGatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{})))
	}
	if cfg.UploadDir != "" {
		app.Static("/uploads", cfg.UploadDir)
	}

	authGroup := app.Group("/auth")
	if cfg.RateLimiter != nil {
		authGroup.Use(cfg.RateLimiter.Handle)
	}
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)

	// Admin routes first: /tickets/admin/* must not be captured by the
	// /tickets/:id parameter routes.
	admin := tickets.Group("/admin", auth.RequireRole(domain.RoleAdmin))
	admin.Get("/all", cfg.AdminTickets.ListAll)
	admin.Get("/analytics", cfg.AdminTickets.Analytics)
	admin.Put("/:id/status", cfg.AdminTickets.SetStatus)
	admin.Post("/:id/notes", cfg.AdminTickets.AddNote)
	admin.Delete("/:id", cfg.AdminTickets.Delete)

	tickets.Post("/", cfg.Tickets.Create)
	tickets.Get("/my", cfg.Tickets.ListMine)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Put("/:id", cfg.Tickets.Update)
	tickets.Delete("/:id", cfg.Tickets.Delete)
}
