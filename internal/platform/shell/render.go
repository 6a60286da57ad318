// Package shell draws the console around every page: header, collapsible
// sidebar with role-filtered navigation, flash messages, and the page body.
package shell

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/radconsole/internal/platform/prefs"
	"github.com/ehr/radconsole/internal/platform/session"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "layout.html"

// Renderer is an echo.Renderer over the embedded page templates. Each page
// is parsed together with the layout and the shared partials (files whose
// name starts with "_"), so every page file defines "content" (and
// optionally "head") and the layout wraps it.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every page in the embedded template set.
func NewRenderer() (*Renderer, error) {
	return newRenderer(templateFS, "templates")
}

func newRenderer(fsys fs.FS, dir string) (*Renderer, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	shared := []string{path.Join(dir, layoutFile)}
	var pages []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == layoutFile || !strings.HasSuffix(name, ".html") {
			continue
		}
		if strings.HasPrefix(name, "_") {
			shared = append(shared, path.Join(dir, name))
			continue
		}
		pages = append(pages, name)
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range pages {
		files := append(slices.Clone(shared), path.Join(dir, name))
		t, err := template.New(layoutFile).Funcs(Funcs()).ParseFS(fsys, files...)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[strings.TrimSuffix(name, ".html")] = t
	}
	return r, nil
}

// Render implements echo.Renderer. name is the page file without ".html".
func (r *Renderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	return t.ExecuteTemplate(w, layoutFile, data)
}

// Has reports whether a page exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Funcs are the helpers available in every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"active": Active,
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02/01/2006")
		},
		"inc":   func(n int) int { return n + 1 },
		"upper": strings.ToUpper,
		"join":  strings.Join,
		"badge": badgeClass,
	}
}

// badgeClass maps a status label onto a colour class.
func badgeClass(s string) string {
	switch strings.ToLower(s) {
	case "completado", "completada", "validado", "entregado", "confirmada", "excelente", "buena", "leida", "activo":
		return "ok"
	case "cancelado", "cancelada", "no asistió", "no_asistio", "deficiente", "alta", "urgente", "inactivo":
		return "danger"
	case "en proceso", "en_proceso", "en revisión", "regular", "media", "corregido":
		return "warn"
	default:
		return "neutral"
	}
}

// Page is the data every template receives. Data is the page body's own
// view model.
type Page struct {
	Title     string
	Path      string
	Session   *session.Session
	Nav       []NavItem
	Collapsed bool
	Flashes   []Flash
	RequestID string
	Year      int
	Data      any
}

// Shell builds Page values for handlers.
type Shell struct {
	Sidebar prefs.Sidebar
	Nav     []NavItem
	// SessionFrom reads the request's session. Wired to auth.SessionFrom.
	SessionFrom func(echo.Context) *session.Session
}

// Page assembles the chrome for the current request.
func (s *Shell) Page(c echo.Context, title string, data any) Page {
	var sess *session.Session
	if s.SessionFrom != nil {
		sess = s.SessionFrom(c)
	}
	nav := s.Nav
	if nav == nil {
		nav = DefaultNav
	}
	rid, _ := c.Get("request_id").(string)
	return Page{
		Title:     title,
		Path:      c.Request().URL.Path,
		Session:   sess,
		Nav:       Visible(nav, sess),
		Collapsed: s.Sidebar.Collapsed(c),
		Flashes:   TakeFlashes(c),
		RequestID: rid,
		Year:      time.Now().Year(),
		Data:      data,
	}
}

// Render draws page name inside the layout.
func (s *Shell) Render(c echo.Context, status int, name, title string, data any) error {
	return c.Render(status, name, s.Page(c, title, data))
}
