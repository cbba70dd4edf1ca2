package api

import (
	"net/http"
)

// getRateLimitsHandler returns the current rate limiter metrics
func (s *Server) getRateLimitsHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.rateLimiter.GetMetrics())
}
