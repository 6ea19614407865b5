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

// BookingHandler handles booking HTTP requests.
type BookingHandler struct {
	bookingSvc *service.BookingService
}

// NewBookingHandler creates a new booking handler.
func NewBookingHandler(bookingSvc *service.BookingService) *BookingHandler {
	return &BookingHandler{bookingSvc: bookingSvc}
}

// CreateBooking handles POST /bookings
//
// Books every leg of a journey for the requesting user. The user is
// identified by the X-User-Id header.
//
// Response codes:
//
//	201  — Booking confirmed (returns booking and seat assignments)
//	400  — Invalid payload or missing X-User-Id
//	404  — Journey not found
//	409  — A concurrent booking took the seats; safe to retry
//	422  — Not enough seats on at least one leg
//	503  — Lock store or database unreachable; retry after backoff
//	500  — Unexpected error
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "bad_request",
			"message": "invalid JSON body: " + err.Error(),
		})
		return
	}
	req.UserID = r.Header.Get("X-User-Id")

	result, err := h.bookingSvc.Book(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":   "validation_failed",
				"message": err.Error(),
			})
		case errors.Is(err, service.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error":   "not_found",
				"message": "Journey not found.",
			})
		case errors.Is(err, service.ErrInsufficientSeats):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":   "insufficient_seats",
				"message": "Not enough seats available on at least one leg.",
			})
		case errors.Is(err, service.ErrSeatsRaceLost):
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":   "seats_taken",
				"message": "Another booking took the seats first. Please retry.",
			})
		case errors.Is(err, service.ErrStoreUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error":   "store_unavailable",
				"message": "Booking backend temporarily unavailable. Retry shortly.",
			})
		default:
			log.Printf("[handler] booking error: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "internal_error",
			})
		}
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// GetBooking handles GET /bookings/{id}
//
// Returns 200 with the booking and its seat assignments, or 404.
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	result, err := h.bookingSvc.GetBooking(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error":   "not_found",
				"message": "Booking not found.",
			})
		case errors.Is(err, service.ErrStoreUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "store_unavailable",
			})
		default:
			log.Printf("[handler] get booking error: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "internal_error",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListUserBookings handles GET /users/{id}/bookings
//
// Returns the user's bookings, newest first. An unknown user simply has an
// empty list.
func (h *BookingHandler) ListUserBookings(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	bookings, err := h.bookingSvc.ListUserBookings(r.Context(), userID)
	if err != nil {
		log.Printf("[handler] list bookings error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal_error",
		})
		return
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bookings": bookings,
	})
}
