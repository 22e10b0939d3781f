// Package ratelimit throttles requests per client IP with a token bucket.
package ratelimit

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/softdesk/apiserver/config"
	"golang.org/x/time/rate"
)

const (
	sweepInterval = time.Minute
	idleTimeout   = 10 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client IP. Buckets idle for longer than
// idleTimeout are dropped on the next sweep.
type Limiter struct {
	limit      rate.Limit
	burst      int
	trustProxy bool
	now        func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

// New returns a Limiter from cfg, or nil when limiting is disabled.
func New(cfg config.RateLimitConfig) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limit:      rate.Limit(cfg.RequestsPerSecond),
		burst:      burst,
		trustProxy: cfg.TrustProxyHeaders,
		now:        time.Now,
		visitors:   make(map[string]*visitor),
	}
}

// Allow reports whether a request from key may proceed now.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= sweepInterval {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > idleTimeout {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

type peerKey struct{}

// PeerAddr records the connection's address before RealIP rewrites
// RemoteAddr from client-supplied headers. Mount it ahead of RealIP.
func PeerAddr(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), peerKey{}, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Middleware rejects requests over the limit with 429. A nil Limiter passes
// every request through. Clients are keyed on the address PeerAddr recorded
// unless the limiter trusts proxy headers.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(l.clientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfterSeconds()))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// retryAfterSeconds is the time until one token refills, rounded up.
func (l *Limiter) retryAfterSeconds() int {
	seconds := int(math.Ceil(1 / float64(l.limit)))
	if seconds < 1 {
		return 1
	}
	return seconds
}

func (l *Limiter) clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if !l.trustProxy {
		if peer, ok := r.Context().Value(peerKey{}).(string); ok {
			addr = peer
		}
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
