package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/radconsole/internal/platform/session"
)

// CookieName carries the opaque session id. The bearer token never leaves
// the server.
const CookieName = "radconsole_session"

const sessionKey = "session"

// Loader resolves the session cookie on every request. A live session is
// stored on the echo context and its token and id on the request context so
// gateway calls made by handlers are authenticated. A cookie pointing at an
// unknown or expired session is cleared.
func Loader(store *session.Store, secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ck, err := c.Cookie(CookieName)
			if err != nil || ck.Value == "" {
				return next(c)
			}
			sess, ok := store.Get(ck.Value)
			if !ok {
				ClearCookie(c, secure)
				return next(c)
			}
			c.Set(sessionKey, sess)
			req := c.Request()
			c.SetRequest(req.WithContext(store.Context(req.Context(), sess)))
			return next(c)
		}
	}
}

// SessionFrom returns the session resolved by Loader, or nil.
func SessionFrom(c echo.Context) *session.Session {
	sess, _ := c.Get(sessionKey).(*session.Session)
	return sess
}

// SetSession makes sess current for the rest of the request, as Loader
// would have done. Login handlers call it before redirecting.
func SetSession(c echo.Context, store *session.Store, sess *session.Session) {
	c.Set(sessionKey, sess)
	req := c.Request()
	c.SetRequest(req.WithContext(store.Context(req.Context(), sess)))
}

// SessionID returns the id from the cookie whether or not it is still live.
func SessionID(c echo.Context) string {
	ck, err := c.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return ck.Value
}

// SetCookie issues the session cookie, expiring with the session token.
func SetCookie(c echo.Context, sess *session.Session, secure bool) {
	ck := &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if !sess.ExpiresAt.IsZero() {
		ck.Expires = sess.ExpiresAt
	}
	c.SetCookie(ck)
}

// ClearCookie removes the session cookie from the browser.
func ClearCookie(c echo.Context, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}
