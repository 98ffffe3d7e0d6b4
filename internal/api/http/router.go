package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-admin-service/internal/api/http/handlers"
	"github.com/spec-kit/user-admin-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	api.Get("/users", cfg.Users.Index)
	api.Post("/users", cfg.Users.Store)
	api.Put("/users/:id", cfg.Users.Update)
	api.Patch("/users/:id", cfg.Users.Update)
	api.Delete("/users/:id", cfg.Users.Destroy)
	api.Post("/users/bulk-delete", cfg.Users.BulkDestroy)
}
