package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/radconsole/internal/platform/session"
)

// quietPrefixes are logged at debug level: asset fetches and probes would
// drown the console's own traffic.
var quietPrefixes = []string{"/static/", "/healthz"}

// Logger writes one line per request. The level follows the outcome: 5xx
// and handler errors at error, 4xx at warn. When the session loader has
// run, the line carries the acting user.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			var evt *zerolog.Event
			switch {
			case err != nil || status >= 500:
				evt = logger.Error().Err(err)
			case status >= 400:
				evt = logger.Warn()
			case quiet(req.URL.Path):
				evt = logger.Debug()
			default:
				evt = logger.Info()
			}
			if sess, ok := c.Get("session").(*session.Session); ok && sess != nil {
				evt = evt.Str("user_id", sess.User.ID).Str("role", string(sess.User.Role))
			}
			rid, _ := c.Get("request_id").(string)

			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}

func quiet(path string) bool {
	for _, p := range quietPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
