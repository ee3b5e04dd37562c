package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/callpulse/lead-intake/internal/auth"
	"github.com/callpulse/lead-intake/internal/config"
	"github.com/callpulse/lead-intake/internal/handler"
	middlewarepkg "github.com/callpulse/lead-intake/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Auth    *handler.AuthHandler
	Webhook *handler.WebhookHandler
	Leads   *handler.LeadAdminHandler
}

// Register wires all HTTP routes for the service.
func Register(e *echo.Echo, cfg *config.Config, jwtManager *auth.JWTManager, handlers Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return handler.Success(c, http.StatusOK, "service healthy", map[string]any{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/auth/login", handlers.Auth.Login)

	// Webhook endpoints keep their own flat response contract; providers
	// retry on anything but a 2xx.
	e.POST("/webhooks/:source", handlers.Webhook.Receive,
		middlewarepkg.WebhookSecret(cfg.WebhookSecret),
		middlewarepkg.RateLimiter(cfg.RateLimitWebhook),
	)

	secured := e.Group("")
	secured.Use(middlewarepkg.JWT(jwtManager))

	admin := secured.Group("/admin", middlewarepkg.RequireRole("admin"))
	admin.GET("/leads", handlers.Leads.List)
	admin.GET("/leads/:id", handlers.Leads.Get)
}
