// Package prefs holds per-browser UI preferences. The sidebar flag lives in
// one cookie and nowhere else; every reader goes through Sidebar.
package prefs

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// SidebarCookie stores the collapse flag as a JSON boolean.
const SidebarCookie = "sidebar-collapsed"

const sidebarMaxAge = 365 * 24 * time.Hour

// Sidebar reads and writes the collapse flag.
type Sidebar struct {
	Secure bool
}

// Collapsed reports the stored flag. A missing or unreadable cookie means
// expanded. A write made earlier in the same request wins over the
// incoming cookie.
func (s Sidebar) Collapsed(c echo.Context) bool {
	if v, ok := c.Get(SidebarCookie).(bool); ok {
		return v
	}
	ck, err := c.Cookie(SidebarCookie)
	if err != nil {
		return false
	}
	var v bool
	if err := json.Unmarshal([]byte(ck.Value), &v); err != nil {
		return false
	}
	return v
}

// Toggle flips the flag and returns the new value.
func (s Sidebar) Toggle(c echo.Context) bool {
	v := !s.Collapsed(c)
	s.set(c, v)
	return v
}

func (s Sidebar) Collapse(c echo.Context) { s.set(c, true) }

func (s Sidebar) Expand(c echo.Context) { s.set(c, false) }

func (s Sidebar) set(c echo.Context, v bool) {
	raw, _ := json.Marshal(v)
	c.Set(SidebarCookie, v)
	c.SetCookie(&http.Cookie{
		Name:     SidebarCookie,
		Value:    string(raw),
		Path:     "/",
		MaxAge:   int(sidebarMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RegisterRoutes mounts the toggle endpoint. Browsers are redirected back
// to the page they came from; scripts get the new state as JSON.
func (s Sidebar) RegisterRoutes(g *echo.Group) {
	g.POST("/prefs/sidebar", s.handleToggle)
}

func (s Sidebar) handleToggle(c echo.Context) error {
	var collapsed bool
	switch c.FormValue("collapsed") {
	case "true":
		s.Collapse(c)
		collapsed = true
	case "false":
		s.Expand(c)
	default:
		collapsed = s.Toggle(c)
	}
	if c.Request().Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return c.JSON(http.StatusOK, map[string]bool{"collapsed": collapsed})
	}
	return c.Redirect(http.StatusSeeOther, backTo(c.Request().Referer()))
}

// backTo keeps only the path and query of the referring page.
func backTo(referer string) string {
	u, err := url.Parse(referer)
	if err != nil || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	return u.RequestURI()
}
