package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/relieftrack/shipment-tracking-api/pkg/circuitbreaker"
	"github.com/relieftrack/shipment-tracking-api/pkg/logger"
)

// GracefulDegradation sheds load from non-essential endpoints when the
// service is persistently failing.
type GracefulDegradation struct {
	breaker *circuitbreaker.CircuitBreaker
	logger  logger.Logger
}

// NewGracefulDegradation creates a new graceful degradation middleware
func NewGracefulDegradation(logger logger.Logger) *GracefulDegradation {
	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: 10,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 5,
	})

	return &GracefulDegradation{
		breaker: breaker,
		logger:  logger,
	}
}

// Middleware returns the wrapping handler
func (gd *GracefulDegradation) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		isEssential := isEssentialEndpoint(r.URL.Path)

		if !isEssential && !gd.breaker.Allow() {
			gd.logger.Warn("Circuit is open, request rejected",
				"path", r.URL.Path,
				"method", r.Method,
				"state", gd.breaker.GetState())

			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Service is temporarily unavailable. Please try again later."))
			return
		}

		wrappedWriter := newStatusCodeWriter(w)

		next.ServeHTTP(wrappedWriter, r)

		if !isEssential {
			switch {
			case wrappedWriter.statusCode >= 500:
				gd.breaker.Failure()
			case wrappedWriter.statusCode < 400:
				gd.breaker.Success()
			}
		}
	})
}

// GetMetrics exposes the underlying breaker state
func (gd *GracefulDegradation) GetMetrics() circuitbreaker.Metrics {
	return gd.breaker.GetMetrics()
}

// Reset closes the breaker
func (gd *GracefulDegradation) Reset() {
	gd.breaker.Reset()
}

// isEssentialEndpoint reports whether an endpoint must never be circuit broken
func isEssentialEndpoint(path string) bool {
	return strings.HasPrefix(path, "/api/health") ||
		strings.HasPrefix(path, "/api/admin")
}

// statusCodeWriter captures the status code written by downstream handlers
type statusCodeWriter struct {
	http.ResponseWriter
	statusCode int
}

func newStatusCodeWriter(w http.ResponseWriter) *statusCodeWriter {
	return &statusCodeWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (w *statusCodeWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
