package shell

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const flashCookie = "radconsole_flash"

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Flash is a one-shot message shown on the next rendered page, the
// server-side stand-in for a snackbar.
type Flash struct {
	Kind    string `json:"k"`
	Message string `json:"m"`
}

const flashKey = "flashes"

// AddFlash queues a message for the next page render, surviving a redirect.
func AddFlash(c echo.Context, kind, msg string) {
	list := pending(c)
	list = append(list, Flash{Kind: kind, Message: msg})
	c.Set(flashKey, list)
	raw, _ := json.Marshal(list)
	c.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Success and Failure are AddFlash shorthands.
func Success(c echo.Context, msg string) { AddFlash(c, FlashSuccess, msg) }
func Failure(c echo.Context, msg string) { AddFlash(c, FlashError, msg) }

// TakeFlashes returns queued messages and clears them.
func TakeFlashes(c echo.Context) []Flash {
	list := pending(c)
	if len(list) == 0 {
		return nil
	}
	c.Set(flashKey, []Flash(nil))
	c.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	return list
}

// pending merges the incoming cookie with messages added in this request.
func pending(c echo.Context) []Flash {
	if list, ok := c.Get(flashKey).([]Flash); ok {
		return list
	}
	var list []Flash
	if ck, err := c.Cookie(flashCookie); err == nil && ck.Value != "" {
		if raw, err := base64.RawURLEncoding.DecodeString(ck.Value); err == nil {
			_ = json.Unmarshal(raw, &list)
		}
	}
	c.Set(flashKey, list)
	return list
}
