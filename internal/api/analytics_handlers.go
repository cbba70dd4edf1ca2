package api

import (
	"net/http"
)

// analyticsOverviewHandler returns the fleet-wide summary
func (s *Server) analyticsOverviewHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.analyticsService.GetOverview(r.Context())

	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

// analyticsTimelineHandler returns per-date totals, optionally
// filtered by startDate/endDate query parameters
func (s *Server) analyticsTimelineHandler(w http.ResponseWriter, r *http.Request) {
	startDate := r.URL.Query().Get("startDate")
	endDate := r.URL.Query().Get("endDate")

	timeline, err := s.analyticsService.GetTimeline(r.Context(), startDate, endDate)

	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"timeline": timeline})
}

// analyticsRoutesHandler returns per-route performance stats
func (s *Server) analyticsRoutesHandler(w http.ResponseWriter, r *http.Request) {
	routes, err := s.analyticsService.GetRoutePerformance(r.Context())

	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"routes": routes})
}

// analyticsCheckpointsHandler returns per-checkpoint scan stats
func (s *Server) analyticsCheckpointsHandler(w http.ResponseWriter, r *http.Request) {
	checkpoints, err := s.analyticsService.GetCheckpointActivity(r.Context())

	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"checkpoints": checkpoints})
}
