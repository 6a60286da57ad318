package shell

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/radconsole/internal/platform/auth"
	"github.com/ehr/radconsole/internal/platform/gateway"
	"github.com/ehr/radconsole/pkg/pagination"
)

// SeeOther is the post/redirect/get answer to a form submission.
func SeeOther(c echo.Context, to string) error {
	return c.Redirect(http.StatusSeeOther, to)
}

// Fail reports a failed backend call as a flash and redirects to to. An
// expired backend session is passed up instead so the error handler can
// send the user to login.
func Fail(c echo.Context, to, msg string, err error) error {
	if errors.Is(err, gateway.ErrUnauthorized) {
		return err
	}
	Failure(c, msg+": "+gateway.Detail(err))
	return SeeOther(c, to)
}

// Fill pages items into the list, converting each record on the current
// page with row.
func Fill[T any](c echo.Context, page *ListPage, items []T, row func(T) Row) {
	p := pagination.FromContext(c)
	page.Total = len(items)
	page.Pager = p.PageLinks(c.Request().URL, len(items))
	visible := pagination.Slice(items, p)
	page.Table.Rows = make([]Row, 0, len(visible))
	for _, it := range visible {
		page.Table.Rows = append(page.Table.Rows, row(it))
	}
}

// LoadError marks a list whose refresh failed. stale says whether older rows
// are still being shown.
func (p *ListPage) LoadError(msg string, err error, stale bool) {
	p.Error = msg + ": " + gateway.Detail(err)
	p.Stale = stale
}

// ErrorHandler renders errors as console pages. A backend 401 (the session
// has already been dropped by the gateway hook) sends the browser to login
// with a replayable return URL preserved.
func ErrorHandler(s *Shell, secureCookies bool, log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		json := auth.WantsJSON(c)

		switch {
		case errors.Is(err, gateway.ErrUnauthorized):
			auth.ClearCookie(c, secureCookies)
			if json {
				_ = c.JSON(http.StatusUnauthorized, map[string]string{"error": "session expired"})
				return
			}
			AddFlash(c, FlashInfo, "Su sesión expiró. Inicie sesión nuevamente.")
			_ = c.Redirect(http.StatusSeeOther, auth.LoginURL(auth.ReturnTarget(c)))
			return
		case errors.Is(err, gateway.ErrForbidden):
			if json {
				_ = c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
				return
			}
			_ = c.Redirect(http.StatusSeeOther, auth.UnauthorizedPath)
			return
		}

		code := http.StatusInternalServerError
		msg := "Ocurrió un error inesperado."
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		} else if errors.Is(err, gateway.ErrNotFound) {
			code = http.StatusNotFound
			msg = "El registro solicitado no existe."
		}
		if code >= http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		if json {
			_ = c.JSON(code, map[string]string{"error": msg})
			return
		}
		data := map[string]string{"Heading": http.StatusText(code), "Message": msg}
		if rerr := s.Render(c, code, "error", http.StatusText(code), data); rerr != nil {
			log.Error().Err(rerr).Msg("render error page")
			_ = c.String(code, msg)
		}
	}
}
