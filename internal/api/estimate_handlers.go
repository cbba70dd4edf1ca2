package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

type estimateRequest struct {
	StartLocation string `json:"startLocation"`
	EndLocation   string `json:"endLocation"`
	Mode          string `json:"mode"`
}

// estimateHandler computes a travel estimate between two place names
func (s *Server) estimateHandler(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	estimate, err := s.estimateService.Estimate(r.Context(), req.StartLocation, req.EndLocation, s.travelProfile(req.Mode))

	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, estimate)
}

// shipmentEstimateHandler computes a travel estimate over a shipment's route
func (s *Server) shipmentEstimateHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	profile := r.URL.Query().Get("mode")

	estimate, err := s.estimateService.EstimateForShipment(r.Context(), id, s.travelProfile(profile))

	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, estimate)
}

// travelProfile falls back to the configured default travel mode
func (s *Server) travelProfile(mode string) string {
	if mode != "" {
		return mode
	}
	if s.config != nil && s.config.Routing.DefaultProfile != "" {
		return s.config.Routing.DefaultProfile
	}
	return ""
}
