package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// RequestTimeout puts a deadline of timeout on each request context. A
// handler that fails with context.DeadlineExceeded is answered with 504 and
// an OperationOutcome. Paths below one of skip (DICOM uploads) get no
// deadline, and a non-positive timeout disables the middleware.
func RequestTimeout(timeout time.Duration, skip ...string) echo.MiddlewareFunc {
	if timeout <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{
		Timeout: timeout,
		Skipper: func(c echo.Context) bool {
			return hasPrefix(c.Request().URL.Path, skip)
		},
		ErrorHandler: func(err error, c echo.Context) error {
			if !errors.Is(err, context.DeadlineExceeded) || c.Response().Committed {
				return err
			}
			return c.JSON(http.StatusGatewayTimeout, fhir.TimeoutOutcome(timeout))
		},
	})
}
