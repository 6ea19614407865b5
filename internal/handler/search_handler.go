package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/rkale/aeris/internal/model"
	"github.com/rkale/aeris/internal/service"
)

// SearchHandler handles passenger search HTTP requests.
type SearchHandler struct {
	searchSvc *service.SearchService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(searchSvc *service.SearchService) *SearchHandler {
	return &SearchHandler{searchSvc: searchSvc}
}

// SearchJourneys handles GET /search/journeys
//
// Query parameters:
//
//	sourceAirport       — 3-letter origin airport code (required)
//	destinationAirport  — 3-letter destination airport code (required)
//	departureDate       — departure calendar day, YYYY-MM-DD (required)
//	passengers          — seats needed on every leg (default 1)
//	sortBy              — "price" or "duration" (optional)
//	limit               — max results per page (default 50)
//
// Returns 200 with {journeys, totalCount}; an empty result is still 200.
func (h *SearchHandler) SearchJourneys(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "bad_request",
			"message": err.Error(),
		})
		return
	}

	results, total, err := h.searchSvc.Search(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":   "validation_failed",
				"message": err.Error(),
			})
		case errors.Is(err, service.ErrStoreUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "store_unavailable",
			})
		default:
			log.Printf("[handler] search error: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "internal_error",
			})
		}
		return
	}
	if results == nil {
		results = []model.SearchResult{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"journeys":   results,
		"totalCount": total,
	})
}

// parseSearchQuery maps query parameters onto a SearchRequest. Only shape
// errors are reported here; semantic validation lives in the service.
func parseSearchQuery(r *http.Request) (*model.SearchRequest, error) {
	q := r.URL.Query()

	req := &model.SearchRequest{
		Source:      q.Get("sourceAirport"),
		Destination: q.Get("destinationAirport"),
		Passengers:  1,
		SortBy:      model.SortKey(q.Get("sortBy")),
	}

	day, err := time.ParseInLocation("2006-01-02", q.Get("departureDate"), time.UTC)
	if err != nil {
		return nil, errors.New("departureDate must be YYYY-MM-DD")
	}
	req.DepartureDate = day

	if raw := q.Get("passengers"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("passengers must be an integer")
		}
		req.Passengers = n
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("limit must be an integer")
		}
		req.Limit = n
	}
	return req, nil
}
