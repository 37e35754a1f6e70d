package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/auth"
)

// Audit logs every mutating request against /api/v1 with the caller's
// identity. Read traffic is left to the request logger; writes are the
// record of who changed what.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			req := c.Request()
			if req.Method == "GET" || req.Method == "HEAD" || req.Method == "OPTIONS" {
				return err
			}
			if !strings.HasPrefix(req.URL.Path, "/api/v1") {
				return err
			}

			ctx := req.Context()
			rid, _ := c.Get("request_id").(string)
			logger.Info().
				Str("request_id", rid).
				Int64("user_id", auth.UserIDFromContext(ctx)).
				Str("role", auth.RoleFromContext(ctx)).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Str("remote_ip", c.RealIP()).
				Time("at", time.Now().UTC()).
				Msg("audit")

			return err
		}
	}
}
