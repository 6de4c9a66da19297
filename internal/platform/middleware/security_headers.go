package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// Content security policies. API responses may not load anything; the form
// pages load Bulma from jsDelivr and their own inline script.
const (
	APIContentSecurityPolicy  = "default-src 'none'; frame-ancestors 'none'"
	PageContentSecurityPolicy = "default-src 'self'; style-src 'self' https://cdn.jsdelivr.net; " +
		"script-src 'self' 'unsafe-inline'; img-src 'self' data:; frame-ancestors 'none'"
)

// SecurityHeaders sets the response security headers. Paths below /api and
// /fhir get the API policy, everything else the page policy.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "0")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			if isAPIPath(c.Request().URL.Path) {
				h.Set("Content-Security-Policy", APIContentSecurityPolicy)
				// examination data must not end up in shared caches
				h.Set("Cache-Control", "no-store")
			} else {
				h.Set("Content-Security-Policy", PageContentSecurityPolicy)
			}

			return next(c)
		}
	}
}

func isAPIPath(p string) bool {
	return strings.HasPrefix(p, "/api/") || p == "/fhir" || strings.HasPrefix(p, "/fhir/")
}
