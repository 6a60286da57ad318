package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func post(t *testing.T, h echo.HandlerFunc, ip string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestRateLimit_BurstThenReject(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}
	h := rateLimit(RateLimitConfig{RequestsPerSecond: 0.2, BurstSize: 3}, clock.now)(okHandler)

	for i := 0; i < 3; i++ {
		if _, err := post(t, h, "10.0.0.1"); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	rec, err := post(t, h, "10.0.0.1")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	retry, perr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if perr != nil || retry < 1 {
		t.Errorf("expected Retry-After >= 1, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0")
	}

	clock.t = clock.t.Add(5 * time.Second)
	if _, err := post(t, h, "10.0.0.1"); err != nil {
		t.Errorf("expected a token after refill, got %v", err)
	}
}

func TestRateLimit_PerIPIsolation(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	h := rateLimit(RateLimitConfig{RequestsPerSecond: 0.1, BurstSize: 1}, clock.now)(okHandler)

	if _, err := post(t, h, "10.0.0.1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := post(t, h, "10.0.0.1"); err == nil {
		t.Fatal("expected second request from same IP to be limited")
	}
	if _, err := post(t, h, "10.0.0.2"); err != nil {
		t.Errorf("expected other IP to pass, got %v", err)
	}
}

func TestRateLimit_GetIsNotCounted(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 0.1, BurstSize: 1})(okHandler)
	e := echo.New()
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		if err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/login", nil), rec)); err != nil {
			t.Fatalf("GET %d: unexpected error: %v", i+1, err)
		}
	}
}

func TestRateLimit_SweepsIdleBuckets(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}
	store := newRateLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute}, clock.now)
	store.getBucket("a").allow(clock.t)

	clock.t = clock.t.Add(2 * time.Minute)
	store.getBucket("b")

	store.mu.RLock()
	defer store.mu.RUnlock()
	if _, ok := store.buckets["a"]; ok {
		t.Error("expected idle bucket to be swept")
	}
	if _, ok := store.buckets["b"]; !ok {
		t.Error("expected new bucket to exist")
	}
}
