package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HeaderWebhookSecret carries the shared secret on inbound webhooks.
const HeaderWebhookSecret = "X-Webhook-Secret"

// WebhookSecret rejects webhook deliveries that do not carry the configured
// shared secret. An empty secret disables the check, since not every form
// provider can be configured to send custom headers.
func WebhookSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return next(c)
			}

			provided := c.Request().Header.Get(HeaderWebhookSecret)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid webhook secret"})
			}

			return next(c)
		}
	}
}
