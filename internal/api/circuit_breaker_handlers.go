package api

import (
	"net/http"
)

// getCircuitBreakersHandler returns the state of every circuit breaker
func (s *Server) getCircuitBreakersHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"http": s.degradation.GetMetrics(),
	}

	if s.routingClient != nil {
		response["routing"] = s.routingClient.Breaker().GetMetrics()
	}

	respondWithJSON(w, http.StatusOK, response)
}

// resetCircuitBreakersHandler forces every circuit breaker closed
func (s *Server) resetCircuitBreakersHandler(w http.ResponseWriter, r *http.Request) {
	s.degradation.Reset()

	if s.routingClient != nil {
		s.routingClient.Breaker().Reset()
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Circuit breakers reset successfully",
	})
}
