package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry works out when an access token stops being usable. The
// console never verifies the signature (the backend does that on every
// call); it only reads exp so a stale session is dropped before the next
// backend round trip fails. Opaque tokens fall back to expires_in.
func tokenExpiry(token string, expiresIn int64, now time.Time) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	if expiresIn > 0 {
		return now.Add(time.Duration(expiresIn) * time.Second)
	}
	return time.Time{}
}
