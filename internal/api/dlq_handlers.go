package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/relieftrack/shipment-tracking-api/internal/models"
	"github.com/relieftrack/shipment-tracking-api/internal/repository"
)

// requireDeadLetterQueue rejects the request when the server runs
// without a durable store and therefore without a dead letter queue.
func (s *Server) requireDeadLetterQueue(w http.ResponseWriter) bool {
	if s.dlqRepo == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Dead letter queue is not available")
		return false
	}
	return true
}

// getDeadLettersHandler returns pending dead letter messages
func (s *Server) getDeadLettersHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireDeadLetterQueue(w) {
		return
	}

	ctx := r.Context()

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))

	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}

	messages, err := s.dlqRepo.GetPendingMessages(ctx, limit)

	if err != nil {
		s.logger.Error("Failed to fetch dead letter messages", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch dead letter messages")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"count":    len(messages),
	})
}

// retryDeadLetterHandler marks a dead letter message for retry
func (s *Server) retryDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireDeadLetterQueue(w) {
		return
	}

	ctx := r.Context()
	idStr := mux.Vars(r)["id"]

	id, err := strconv.ParseInt(idStr, 10, 64)

	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid message ID")
		return
	}

	message, err := s.dlqRepo.GetMessage(ctx, id)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Dead letter message not found")
			return
		}
		s.logger.Error("Failed to fetch dead letter message", "error", err, "messageID", id)
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch dead letter message")
		return
	}

	if message.Status != models.DeadLetterStatusPending {
		respondWithError(w, http.StatusBadRequest, "Only pending messages can be retried")
		return
	}

	if err := s.dlqRepo.MarkAsRetrying(ctx, id); err != nil {
		s.logger.Error("Failed to mark message as retrying", "error", err, "messageID", id)
		respondWithError(w, http.StatusInternalServerError, "Failed to mark message for retry")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Dead letter message marked for retry",
		"id":      idStr,
	})
}

// discardDeadLetterHandler permanently discards a dead letter message
func (s *Server) discardDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireDeadLetterQueue(w) {
		return
	}

	ctx := r.Context()
	idStr := mux.Vars(r)["id"]

	id, err := strconv.ParseInt(idStr, 10, 64)

	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid message ID")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	if req.Reason == "" {
		req.Reason = "No reason provided"
	}

	if err := s.dlqRepo.MarkAsDiscarded(ctx, id, req.Reason); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Dead letter message not found")
			return
		}
		s.logger.Error("Failed to discard message", "error", err, "messageID", id)
		respondWithError(w, http.StatusInternalServerError, "Failed to discard message")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Dead letter message discarded",
		"id":      idStr,
	})
}
