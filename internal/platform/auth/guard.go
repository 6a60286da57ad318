// Package auth is the console's access-control boundary. Loader resolves
// the session cookie, Guard turns anonymous requests away, and RequireRoles
// gates a route on the user's role. Navigation visibility in the shell is
// presentation only; these middlewares are what actually enforce access.
package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ehr/radconsole/internal/platform/session"
)

const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
	ReturnURLParam   = "returnUrl"
)

// GuardConfig configures Guard.
type GuardConfig struct {
	// Skipper bypasses the guard. Defaults to Skipper.
	Skipper middleware.Skipper
}

// Guard requires a live session. Browsers without one are sent to the login
// page with the requested URL preserved; API callers get 401.
func Guard(cfg GuardConfig) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = Skipper
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper(c) {
				return next(c)
			}
			if SessionFrom(c) == nil {
				return denyAnonymous(c)
			}
			return next(c)
		}
	}
}

// RequireRoles admits only sessions whose role is in roles. Anonymous
// requests are handled as in Guard; a role mismatch goes to the
// unauthorized page (403 for API callers).
func RequireRoles(roles ...session.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := SessionFrom(c)
			if sess == nil {
				return denyAnonymous(c)
			}
			if len(roles) > 0 && !sess.HasRole(roles...) {
				if WantsJSON(c) {
					return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
				}
				return c.Redirect(http.StatusSeeOther, UnauthorizedPath)
			}
			return next(c)
		}
	}
}

func denyAnonymous(c echo.Context) error {
	if WantsJSON(c) {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return c.Redirect(http.StatusSeeOther, LoginURL(ReturnTarget(c)))
}

// ReturnTarget is where login should send the user back to. Only GET and
// HEAD can be replayed; other methods fall back to the same-origin page
// that submitted them, or "/".
func ReturnTarget(c echo.Context) string {
	req := c.Request()
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		return req.URL.RequestURI()
	}
	ref, err := url.Parse(req.Referer())
	if err != nil || ref.Host == "" || !strings.EqualFold(ref.Host, req.Host) {
		return "/"
	}
	return ref.RequestURI()
}

// LoginURL builds the login redirect that brings the user back to target.
func LoginURL(target string) string {
	target = SafeReturnURL(target)
	if target == "/" {
		return LoginPath
	}
	return LoginPath + "?" + ReturnURLParam + "=" + url.QueryEscape(target)
}

// SafeReturnURL keeps post-login redirects on this origin. Anything that is
// not an absolute path, or that a browser would read as protocol-relative,
// becomes "/".
func SafeReturnURL(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return "/"
	}
	if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	if u.Path == LoginPath {
		return "/"
	}
	return raw
}

// WantsJSON reports whether the caller is a script rather than a page
// navigation.
func WantsJSON(c echo.Context) bool {
	req := c.Request()
	if strings.EqualFold(req.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	accept := req.Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, echo.MIMEApplicationJSON) && !strings.Contains(accept, echo.MIMETextHTML)
}
