package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths are reachable without a session: the auth pages themselves,
// the unauthorized page, and infrastructure endpoints.
var publicPaths = map[string]bool{
	"/login":            true,
	"/logout":           true,
	"/register":         true,
	"/register/patient": true,
	"/unauthorized":     true,
	"/healthz":          true,
	"/favicon.ico":      true,
}

// IsPublicPath reports whether path bypasses the guard.
func IsPublicPath(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, "/static/")
}

// Skipper is the echo skipper form of IsPublicPath.
func Skipper(c echo.Context) bool {
	return IsPublicPath(c.Request().URL.Path)
}
