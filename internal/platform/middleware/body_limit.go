package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
)

// BodyLimit caps request bodies. Form posts get defaultLimit; multipart
// DICOM uploads under uploadPrefix get uploadLimit.
//
// Limits are human-readable sizes ("1MB", "500 MiB", "2G") parsed with
// go-humanize. An unparseable limit falls back to 1 MB.
func BodyLimit(defaultLimit, uploadLimit, uploadPrefix string) echo.MiddlewareFunc {
	defaultBytes := parseLimit(defaultLimit)
	uploadBytes := parseLimit(uploadLimit)
	return BodyLimitBytes(defaultBytes, uploadBytes, uploadPrefix)
}

// BodyLimitBytes is BodyLimit with limits already in bytes.
func BodyLimitBytes(defaultBytes, uploadBytes int64, uploadPrefix string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			limit := defaultBytes
			if uploadPrefix != "" && req.Method == http.MethodPost && strings.HasPrefix(req.URL.Path, uploadPrefix) {
				limit = uploadBytes
			}

			// Content-Length first for early rejection.
			if req.ContentLength > limit {
				return payloadTooLarge(limit)
			}

			// The limiting reader enforces the cap when Content-Length is
			// missing or wrong.
			req.Body = &limitedReadCloser{
				ReadCloser: req.Body,
				remaining:  limit,
				limit:      limit,
			}

			return next(c)
		}
	}
}

type limitedReadCloser struct {
	io.ReadCloser
	remaining int64
	limit     int64
	exceeded  bool
}

func (r *limitedReadCloser) Read(p []byte) (n int, err error) {
	if r.exceeded {
		return 0, payloadTooLarge(r.limit)
	}

	// Read at most remaining+1 so overflow is detected.
	toRead := int64(len(p))
	if toRead > r.remaining+1 {
		toRead = r.remaining + 1
	}

	n, err = r.ReadCloser.Read(p[:toRead])
	r.remaining -= int64(n)

	if r.remaining < 0 {
		r.exceeded = true
		return 0, payloadTooLarge(r.limit)
	}

	return n, err
}

func payloadTooLarge(limit int64) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
		fmt.Sprintf("request body exceeds %s", humanize.IBytes(uint64(limit))))
}

func parseLimit(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1 << 20
	}
	n, err := humanize.ParseBytes(s)
	if err != nil || n == 0 {
		return 1 << 20
	}
	return int64(n)
}
