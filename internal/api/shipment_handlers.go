package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/relieftrack/shipment-tracking-api/internal/models"
)

// getShipmentsHandler returns every shipment record
func (s *Server) getShipmentsHandler(w http.ResponseWriter, r *http.Request) {
	shipments, err := s.shipmentService.GetAllShipments(r.Context())

	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, shipments)
}

// getShipmentByIDHandler returns one shipment by tracking ID
func (s *Server) getShipmentByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	shipment, err := s.shipmentService.GetShipment(r.Context(), id)

	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, shipment)
}

// createShipmentHandler registers a new shipment
func (s *Server) createShipmentHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateShipmentRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	shipment, err := s.shipmentService.CreateShipment(r.Context(), &req)

	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, shipment)
}

// updateShipmentHandler applies a partial update to a shipment
func (s *Server) updateShipmentHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req models.UpdateShipmentRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	shipment, err := s.shipmentService.UpdateShipment(r.Context(), id, &req)

	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, shipment)
}

// deleteShipmentHandler removes a shipment record
func (s *Server) deleteShipmentHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.shipmentService.DeleteShipment(r.Context(), id); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Shipment deleted successfully"})
}

// appendLocationHandler records a checkpoint scan
func (s *Server) appendLocationHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req models.AppendLocationRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	event, shipment, err := s.shipmentService.AppendLocation(r.Context(), id, &req)

	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"location": event,
		"shipment": shipment,
	})
}

// verifyShipmentHandler marks a shipment received after verification
func (s *Server) verifyShipmentHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req models.VerifyShipmentRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	shipment, err := s.shipmentService.VerifyShipment(r.Context(), id, &req)

	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, shipment)
}

// flagTamperedHandler flags a shipment as tampered
func (s *Server) flagTamperedHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req models.VerifyShipmentRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	shipment, err := s.shipmentService.FlagTampered(r.Context(), id, &req)

	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, shipment)
}
