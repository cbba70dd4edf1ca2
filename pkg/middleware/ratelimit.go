package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/relieftrack/shipment-tracking-api/pkg/logger"
	"github.com/relieftrack/shipment-tracking-api/pkg/ratelimit"
)

// RateLimiterMiddleware applies a global and a per-IP token bucket to incoming requests
type RateLimiterMiddleware struct {
	globalLimiter     *ratelimit.TokenBucket
	ipLimiter         *ratelimit.IPRateLimiter
	logger            logger.Logger
	trustForwardedFor bool
}

// RateLimiterConfig configures the rate limiter middleware
type RateLimiterConfig struct {
	GlobalMaxTokens   float64
	GlobalRefillRate  float64
	IPMaxTokens       float64
	IPRefillRate      float64
	TrustForwardedFor bool
}

// NewRateLimiterMiddleware creates a new rate limiter middleware
func NewRateLimiterMiddleware(cfg *RateLimiterConfig, logger logger.Logger) *RateLimiterMiddleware {
	return &RateLimiterMiddleware{
		globalLimiter:     ratelimit.NewTokenBucket(cfg.GlobalMaxTokens, cfg.GlobalRefillRate),
		ipLimiter:         ratelimit.NewIPRateLimiter(cfg.IPMaxTokens, cfg.IPRefillRate),
		logger:            logger,
		trustForwardedFor: cfg.TrustForwardedFor,
	}
}

// Middleware returns the wrapping handler
func (m *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.globalLimiter.Allow() {
			m.logger.Warn("Global rate limit exceeded", "method", r.Method, "path", r.URL.Path)

			w.Header().Set("Retry-After", "10")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("Global rate limit exceeded. Please try again later."))
			return
		}

		ip := m.getClientIP(r)

		if !m.ipLimiter.Allow(ip) {
			m.logger.Warn("IP rate limit exceeded", "method", r.Method, "path", r.URL.Path, "ip", ip)

			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("IP rate limit exceeded. Please try again later."))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Metrics reports the limiter's current capacity for monitoring
type Metrics struct {
	GlobalTokensAvailable float64 `json:"global_tokens_available"`
	TrackedIPs            int     `json:"tracked_ips"`
}

// GetMetrics returns a snapshot of limiter state
func (m *RateLimiterMiddleware) GetMetrics() Metrics {
	return Metrics{
		GlobalTokensAvailable: m.globalLimiter.Available(),
		TrackedIPs:            m.ipLimiter.TrackedIPs(),
	}
}

// getClientIP extracts the client IP from the request
func (m *RateLimiterMiddleware) getClientIP(r *http.Request) string {
	if m.trustForwardedFor {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			// first address in the list is the originating client
			parts := strings.Split(fwd, ",")
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
