// Package handler contains HTTP request handlers for the booking API.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rkale/aeris/internal/model"
	"github.com/rkale/aeris/internal/service"
)

// FlightHandler handles the admin flight endpoints.
type FlightHandler struct {
	ingest *service.IngestService
}

// NewFlightHandler creates a new handler wired to the ingest service.
func NewFlightHandler(ingest *service.IngestService) *FlightHandler {
	return &FlightHandler{ingest: ingest}
}

// CreateFlight handles POST /admin/flights
//
// Validates the flight, persists it with its seat inventory and emits the
// flight-created event that drives journey precomputation.
//
// Response codes:
//
//	201  — Flight created (returns the flight)
//	400  — Invalid payload or failed validation
//	500  — Unexpected error
func (h *FlightHandler) CreateFlight(w http.ResponseWriter, r *http.Request) {
	var req model.CreateFlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "bad_request",
			"message": "invalid JSON body: " + err.Error(),
		})
		return
	}

	flight, err := h.ingest.CreateFlight(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":   "validation_failed",
				"message": err.Error(),
			})
		default:
			log.Printf("[handler] create flight error: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "internal_error",
			})
		}
		return
	}

	writeJSON(w, http.StatusCreated, flight)
}

// GetFlight handles GET /admin/flights/{id}
//
// Returns 200 with the flight, or 404 when no such flight exists.
func (h *FlightHandler) GetFlight(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	flight, err := h.ingest.GetFlight(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error":   "not_found",
				"message": "Flight not found.",
			})
		default:
			log.Printf("[handler] get flight error: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "internal_error",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, flight)
}

// writeJSON is a helper that writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
