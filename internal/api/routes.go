package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tiburcios-stuff/bling-adapter/internal/registry"
)

// RegisterRoutes wires the dashboard API onto the fiber app.
func RegisterRoutes(app *fiber.App, reg *registry.Registry, h *Handler) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{
			"registry": "ok",
		}
		status := "ok"
		code := fiber.StatusOK

		if _, err := reg.Load(); err != nil {
			checks["registry"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	// API routes
	v1 := app.Group("/api/v1")
	v1.Get("/accounts", h.ListAccounts)
	v1.Get("/accounts/:name/authorize-url", h.AuthorizeURL)
	v1.Post("/accounts/:name/callback", h.SubmitCallback)
	v1.Delete("/accounts/:name/session", h.Deauthorize)
	v1.Get("/accounts/:name/orders", h.Orders)
	v1.Get("/accounts/:name/summary", h.Summary)
}
