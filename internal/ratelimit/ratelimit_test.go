package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/softdesk/apiserver/config"
	"github.com/stretchr/testify/assert"
)

func TestNew_Disabled(t *testing.T) {
	assert.Nil(t, New(config.RateLimitConfig{RequestsPerSecond: 0, Burst: 5}))

	var l *Limiter
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	rec := httptest.NewRecorder()
	l.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestLimiter_BurstThenReject(t *testing.T) {
	l := New(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2})
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "buckets are per client")

	fixed = fixed.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
}

func TestLimiter_SweepsIdleVisitors(t *testing.T) {
	l := New(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("10.0.0.1")
	l.Allow("10.0.0.2")
	assert.Equal(t, 2, l.size())

	now = now.Add(idleTimeout + sweepInterval)
	l.Allow("10.0.0.3")
	assert.Equal(t, 1, l.size())
}

func TestMiddleware_TooManyRequests(t *testing.T) {
	l := New(config.RateLimitConfig{RequestsPerSecond: 0.5, Burst: 1})
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "192.0.2.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"too many requests"}`, rec.Body.String())
}

func forwardedChain(l *Limiter) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return PeerAddr(middleware.RealIP(l.Middleware(ok)))
}

func forwardedFor(handler http.Handler, forwarded string) int {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("X-Forwarded-For", forwarded)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestMiddleware_IgnoresForwardedHeadersByDefault(t *testing.T) {
	handler := forwardedChain(New(config.RateLimitConfig{RequestsPerSecond: 0.5, Burst: 1}))

	assert.Equal(t, http.StatusOK, forwardedFor(handler, "198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, forwardedFor(handler, "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, forwardedFor(handler, "198.51.100.3"))
}

func TestMiddleware_TrustProxyHeaders(t *testing.T) {
	handler := forwardedChain(New(config.RateLimitConfig{RequestsPerSecond: 0.5, Burst: 1, TrustProxyHeaders: true}))

	assert.Equal(t, http.StatusOK, forwardedFor(handler, "198.51.100.1"))
	assert.Equal(t, http.StatusOK, forwardedFor(handler, "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, forwardedFor(handler, "198.51.100.1"))
}
