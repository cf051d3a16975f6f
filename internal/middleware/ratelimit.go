// Package middleware holds the HTTP middleware used by the cube server.
package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for the rate limiter middleware.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit (tokens added per second).
	RequestsPerSecond float64
	// Burst is the maximum number of requests allowed in a burst.
	Burst int
}

const limiterIdleTTL = 10 * time.Minute

// limiterPool hands out one token bucket per client IP. Stale entries are
// pruned opportunistically on lookup, so no background goroutine is needed.
type limiterPool struct {
	mu        sync.Mutex
	cfg       RateLimitConfig
	clients   map[string]*poolEntry
	lastPrune time.Time
}

type poolEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterPool(cfg RateLimitConfig) *limiterPool {
	return &limiterPool{cfg: cfg, clients: map[string]*poolEntry{}, lastPrune: time.Now()}
}

func (p *limiterPool) get(ip string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if now.Sub(p.lastPrune) > limiterIdleTTL {
		for key, e := range p.clients {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(p.clients, key)
			}
		}
		p.lastPrune = now
	}

	e, ok := p.clients[ip]
	if !ok {
		e = &poolEntry{limiter: rate.NewLimiter(rate.Limit(p.cfg.RequestsPerSecond), p.cfg.Burst)}
		p.clients[ip] = e
	}
	e.lastSeen = now
	return e.limiter
}

// RateLimiter returns an HTTP middleware enforcing a per-client token-bucket
// rate limit. Exceeding the limit yields 429 Too Many Requests with standard
// rate-limit headers.
func RateLimiter(cfg RateLimitConfig) func(http.Handler) http.Handler {
	pool := newLimiterPool(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := pool.get(clientIP(r))
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"code":    http.StatusTooManyRequests,
					"message": "rate limit exceeded",
				})
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP address from the request, stripping the
// port. Only RemoteAddr is used — X-Forwarded-For is untrusted and ignored
// to prevent rate-limit bypass via header spoofing.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
