package middleware

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eyecare/eyecare/internal/platform/fhir"
)

// BodyLimit caps request bodies at limit bytes, or at uploadLimit for POSTs
// below one of uploadPaths. A body over its cap is answered with 413 and an
// OperationOutcome, whether the excess shows in Content-Length or only while
// the handler reads.
func BodyLimit(limit, uploadLimit int64, uploadPaths ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			max := limit
			if req.Method == http.MethodPost && hasPrefix(req.URL.Path, uploadPaths) {
				max = uploadLimit
			}
			if req.ContentLength > max {
				return c.JSON(http.StatusRequestEntityTooLarge, fhir.BodyTooLargeOutcome(max))
			}

			body := &cappedBody{ReadCloser: req.Body, remaining: max}
			req.Body = body
			err := next(c)
			if body.exceeded && !c.Response().Committed {
				return c.JSON(http.StatusRequestEntityTooLarge, fhir.BodyTooLargeOutcome(max))
			}
			return err
		}
	}
}

// cappedBody fails every read once more than remaining bytes were read.
type cappedBody struct {
	io.ReadCloser
	remaining int64
	exceeded  bool
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.exceeded {
		return 0, echo.ErrStatusRequestEntityTooLarge
	}
	if int64(len(p)) > b.remaining+1 {
		p = p[:b.remaining+1]
	}
	n, err := b.ReadCloser.Read(p)
	b.remaining -= int64(n)
	if b.remaining < 0 {
		b.exceeded = true
		return 0, echo.ErrStatusRequestEntityTooLarge
	}
	return n, err
}

func hasPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
