// SPDX-License-Identifier: MIT

// Package ratelimit provides token-bucket limits for expensive endpoints.
package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/nutriscan/internal/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var rateLimitExceeded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "nutriscan",
		Name:      "ratelimit_exceeded_total",
		Help:      "Total rate limit rejections",
	},
	[]string{"limit_type", "scope"},
)

// Config holds rate limiting configuration.
type Config struct {
	// Scope labels metrics, e.g. "upload".
	Scope string

	GlobalRate  rate.Limit // requests per second; 0 disables
	GlobalBurst int

	PerIPRate  rate.Limit
	PerIPBurst int

	// IdleTTL drops a client's bucket after this long without requests.
	IdleTTL time.Duration
}

// DefaultConfig returns upload defaults.
func DefaultConfig() Config {
	return Config{
		Scope:       "upload",
		GlobalRate:  20,
		GlobalBurst: 40,
		PerIPRate:   2,
		PerIPBurst:  5,
		IdleTTL:     10 * time.Minute,
	}
}

// Limiter enforces a global and a per-client token bucket.
type Limiter struct {
	config  Config
	global  *rate.Limiter
	clients *cache.Memory[*rate.Limiter]
}

// New creates a limiter. Close releases its janitor.
func New(config Config) *Limiter {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	l := &Limiter{
		config:  config,
		clients: cache.NewMemory[*rate.Limiter](config.IdleTTL / 2),
	}
	if config.GlobalRate > 0 {
		l.global = rate.NewLimiter(config.GlobalRate, config.GlobalBurst)
	}
	return l
}

// Allow reports whether a request from clientIP may proceed now.
func (l *Limiter) Allow(clientIP string) bool {
	if l.global != nil && !l.global.Allow() {
		rateLimitExceeded.WithLabelValues("global", l.config.Scope).Inc()
		return false
	}
	if !l.clientLimiter(clientIP).Allow() {
		rateLimitExceeded.WithLabelValues("per_ip", l.config.Scope).Inc()
		return false
	}
	return true
}

func (l *Limiter) clientLimiter(ip string) *rate.Limiter {
	if lim, ok := l.clients.Touch(ip); ok {
		return lim
	}
	lim := rate.NewLimiter(l.config.PerIPRate, l.config.PerIPBurst)
	l.clients.Set(ip, lim, l.config.IdleTTL)
	return lim
}

// Clients returns the number of tracked clients.
func (l *Limiter) Clients() int { return l.clients.Len() }

// Close stops background cleanup.
func (l *Limiter) Close() { l.clients.Stop() }

// Middleware rejects limited requests with a JSON 429.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Allow(GetClientIP(r)) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":  "rate_limited",
			"detail": "too many requests, slow down",
		})
	})
}

// GetClientIP extracts the client IP, preferring proxy headers.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
