package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Prefix         string
	LoginRateLimit int
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Catalog        *handlers.CatalogHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	api := app.Group(cfg.Prefix)

	api.Get("/health/live", cfg.Health.Live)
	api.Get("/health/ready", cfg.Health.Ready)
	api.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := api.Group("/auth")
	credentials := rateLimit(cfg.LoginRateLimit)
	authGroup.Post("/register", credentials, cfg.Auth.Register)
	authGroup.Post("/login", credentials, cfg.Auth.Login)
	authGroup.Post("/session", cfg.Auth.Session)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	api.Get("/categories", cfg.Catalog.ListCategories)
	api.Get("/departments", cfg.Catalog.ListDepartments)

	protected := api.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/equipments", cfg.Catalog.ListEquipment)

	tickets := protected.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/my-assigned", auth.RequireStaff(), cfg.Tickets.ListAssigned)
	tickets.Get("/my-resolved", auth.RequireStaff(), cfg.Tickets.ListResolved)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id", auth.RequireStaff(), cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)

	users := protected.Group("/users", auth.RequireStaff())
	users.Get("/technicians", cfg.Users.ListTechnicians)
	users.Get("/", cfg.Users.ListUsers)

	app.Use(notFound)
}

func rateLimit(perMinute int) fiber.Handler {
	if perMinute <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.ErrTooManyRequests
		},
	})
}
