package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/rkale/aeris/config"
	"github.com/rkale/aeris/internal/cache"
	"github.com/rkale/aeris/internal/model"
)

// JourneySearcher defines the journey reads used by SearchService.
type JourneySearcher interface {
	SearchActive(ctx context.Context, source, destination string, day time.Time) ([]model.Journey, error)
}

// SeatCounter provides live availability counts per flight.
type SeatCounter interface {
	CountAvailable(ctx context.Context, flightIDs []string) (map[string]int, error)
}

// SearchCache defines the cache operations used by SearchService.
type SearchCache interface {
	Get(ctx context.Context, key string) ([]model.Journey, error)
	Set(ctx context.Context, key string, journeys []model.Journey) error
}

// DefaultSearchLimit caps result pages when the caller omits a limit.
const DefaultSearchLimit = 50

// SearchService serves passenger journey searches.
//
// Read path: cache-aside over the journey catalogue, then a live
// availability pass. Only the catalogue is cached — seat availability
// changes on every booking, so it is recomputed per request.
type SearchService struct {
	journeys JourneySearcher
	seats    SeatCounter
	cache    SearchCache
	cfg      config.BookingConfig
}

// NewSearchService creates a search service.
func NewSearchService(journeys JourneySearcher, seats SeatCounter, cache SearchCache, cfg config.BookingConfig) *SearchService {
	return &SearchService{journeys: journeys, seats: seats, cache: cache, cfg: cfg}
}

// Search returns journeys matching the request, filtered to those with
// enough seats, deterministically sorted, truncated to the limit. The
// second return value is the total match count before truncation.
func (s *SearchService) Search(ctx context.Context, req *model.SearchRequest) ([]model.SearchResult, int, error) {
	if err := s.validateSearch(req); err != nil {
		return nil, 0, err
	}
	if req.Limit <= 0 {
		req.Limit = DefaultSearchLimit
	}

	// ── Step 1: catalogue, cache-aside ──────────────────
	key := cache.Key(req.Source, req.Destination, req.DepartureDate)
	journeys, err := s.cache.Get(ctx, key)
	if err != nil {
		journeys, err = s.journeys.SearchActive(ctx, req.Source, req.Destination, req.DepartureDate)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: search journeys: %v", ErrStoreUnavailable, err)
		}
		// A failed cache write only costs the next request a DB round trip.
		if err := s.cache.Set(ctx, key, journeys); err != nil {
			log.Printf("[search] cache set %s failed: %v", key, err)
		}
	}
	if len(journeys) == 0 {
		return nil, 0, nil
	}

	// ── Step 2: live availability, never cached ─────────
	flightIDs := make(map[string]struct{})
	for i := range journeys {
		for _, leg := range journeys[i].Legs {
			flightIDs[leg.FlightID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(flightIDs))
	for id := range flightIDs {
		ids = append(ids, id)
	}

	counts, err := s.seats.CountAvailable(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: count seats: %v", ErrStoreUnavailable, err)
	}

	// A journey's availability is the tightest leg.
	var results []model.SearchResult
	for i := range journeys {
		avail := availableOn(&journeys[i], counts)
		if avail >= req.Passengers {
			results = append(results, model.SearchResult{Journey: journeys[i], AvailableSeats: avail})
		}
	}

	// ── Step 3: deterministic sort, then page ───────────
	sortResults(results, req.SortBy)

	total := len(results)
	if len(results) > req.Limit {
		results = results[:req.Limit]
	}
	return results, total, nil
}

// availableOn computes min over legs of the flight's AVAILABLE seat count.
func availableOn(j *model.Journey, counts map[string]int) int {
	avail := -1
	for _, leg := range j.Legs {
		n := counts[leg.FlightID] // zero when the flight has no free seats
		if avail < 0 || n < avail {
			avail = n
		}
	}
	if avail < 0 {
		return 0
	}
	return avail
}

// sortResults orders results by the requested key, ascending, with journey
// id as the tiebreak so paging is deterministic.
func sortResults(results []model.SearchResult, key model.SortKey) {
	switch key {
	case model.SortByPrice:
		sort.SliceStable(results, func(i, k int) bool {
			if results[i].Journey.TotalPrice != results[k].Journey.TotalPrice {
				return results[i].Journey.TotalPrice < results[k].Journey.TotalPrice
			}
			return results[i].Journey.ID < results[k].Journey.ID
		})
	case model.SortByDuration:
		sort.SliceStable(results, func(i, k int) bool {
			di, dk := results[i].Journey.Duration(), results[k].Journey.Duration()
			if di != dk {
				return di < dk
			}
			return results[i].Journey.ID < results[k].Journey.ID
		})
	}
}

// validateSearch applies static checks to the search parameters. The
// passenger cap follows the booking limit — a search for more passengers
// than a single booking may hold could never be satisfied.
func (s *SearchService) validateSearch(req *model.SearchRequest) error {
	switch {
	case !airportCodeRe.MatchString(req.Source):
		return fmt.Errorf("%w: sourceAirport must be a 3-letter code", ErrValidation)
	case !airportCodeRe.MatchString(req.Destination):
		return fmt.Errorf("%w: destinationAirport must be a 3-letter code", ErrValidation)
	case req.Source == req.Destination:
		return fmt.Errorf("%w: source and destination must differ", ErrValidation)
	case req.DepartureDate.IsZero():
		return fmt.Errorf("%w: departureDate is required", ErrValidation)
	case req.Passengers < 1 || req.Passengers > s.cfg.MaxSeatsPerBooking:
		return fmt.Errorf("%w: passengers must be in [1, %d]", ErrValidation, s.cfg.MaxSeatsPerBooking)
	case req.SortBy != model.SortByNone && req.SortBy != model.SortByPrice && req.SortBy != model.SortByDuration:
		return fmt.Errorf("%w: sortBy must be price, duration or empty", ErrValidation)
	}
	return nil
}
