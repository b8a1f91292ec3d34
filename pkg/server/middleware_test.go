package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginPolicy(t *testing.T) {
	open := newOriginPolicy(nil)
	assert.True(t, open.allowed("https://anything.example"))

	p := newOriginPolicy([]string{" https://Map.Example.org "})
	assert.True(t, p.allowed("https://map.example.org"))
	assert.False(t, p.allowed("https://evil.example"))

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, p.checkOrigin(r), "no Origin header")
	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, p.checkOrigin(r))
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := corsMiddleware(newOriginPolicy([]string{"https://map.example.org"}), next)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/portals", nil)
	req.Header.Set("Origin", "https://map.example.org")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://map.example.org", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/portals", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2)
	rl.now = func() time.Time { return now }

	ok, _ := rl.allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = rl.allow("10.0.0.1")
	assert.True(t, ok)
	ok, retry := rl.allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	ok, _ = rl.allow("10.0.0.2")
	assert.True(t, ok, "limits are per IP")

	now = now.Add(time.Minute)
	ok, _ = rl.allow("10.0.0.1")
	assert.True(t, ok, "window resets")

	now = now.Add(2 * time.Minute)
	rl.cleanup()
	assert.Zero(t, rl.tracked())
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := newRateLimiter(0)
	for range 1000 {
		ok, _ := rl.allow("10.0.0.1")
		require.True(t, ok)
	}
	assert.Zero(t, rl.tracked())
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := newRateLimiter(1)
	h := rateLimitMiddleware(rl, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	serve := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "192.0.2.7:5555"
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, serve("/api/v1/colors").Code)
	limited := serve("/api/v1/colors")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), "rate limit exceeded")

	assert.Equal(t, http.StatusOK, serve("/health").Code)
	assert.Equal(t, http.StatusOK, serve("/metrics").Code)
}
