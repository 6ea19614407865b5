package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rkale/aeris/config"
	"github.com/rkale/aeris/internal/model"
	"github.com/rkale/aeris/internal/repository"
)

// FlightSource defines the flight reads used by PrecomputeService.
type FlightSource interface {
	GetFlight(ctx context.Context, id string) (*model.Flight, error)
	ListActiveByDepartureDay(ctx context.Context, day time.Time) ([]model.Flight, error)
}

// JourneyWriter defines the journey persistence used by PrecomputeService.
type JourneyWriter interface {
	InsertJourney(ctx context.Context, j *model.Journey) (bool, error)
}

// RouteInvalidator evicts search-cache entries for a route.
type RouteInvalidator interface {
	InvalidateRoute(ctx context.Context, source, destination string) error
}

// ConnectionRules are the admission rules for multi-leg journeys.
type ConnectionRules struct {
	MinLayover time.Duration
	MaxLayover time.Duration
	MaxSpan    time.Duration
	MaxLegs    int
}

// RulesFromConfig extracts the connection rules from booking config.
func RulesFromConfig(cfg config.BookingConfig) ConnectionRules {
	return ConnectionRules{
		MinLayover: cfg.MinLayover,
		MaxLayover: cfg.MaxLayover,
		MaxSpan:    cfg.MaxJourneySpan,
		MaxLegs:    cfg.MaxLegs,
	}
}

// PrecomputeService consumes flight-created events and materialises every
// valid journey through the new flight.
type PrecomputeService struct {
	flights     FlightSource
	journeys    JourneyWriter
	invalidator RouteInvalidator
	rules       ConnectionRules
}

// NewPrecomputeService creates a precompute service.
func NewPrecomputeService(
	flights FlightSource,
	journeys JourneyWriter,
	invalidator RouteInvalidator,
	rules ConnectionRules,
) *PrecomputeService {
	return &PrecomputeService{
		flights:     flights,
		journeys:    journeys,
		invalidator: invalidator,
		rules:       rules,
	}
}

// Process handles one flights.created event to completion.
//
// The bus delivers at-least-once, so everything here is idempotent: the
// traversal enumerates the same path set on every replay, and journey
// persistence swallows signature conflicts. Returning an error leaves the
// event uncommitted for redelivery.
func (s *PrecomputeService) Process(ctx context.Context, event *model.FlightCreatedEvent) error {
	// ── Step 1: load the new flight ─────────────────────
	flight, err := s.flights.GetFlight(ctx, event.FlightID)
	if errors.Is(err, repository.ErrNotFound) {
		// Event for a flight we never stored. Nothing to build; drop it.
		log.Printf("[precompute] flight %s not found, dropping event", event.FlightID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("precompute: load flight %s: %w", event.FlightID, err)
	}

	// ── Step 2: load the same-day candidate set ─────────
	sameDay, err := s.flights.ListActiveByDepartureDay(ctx, flight.DepartureAt)
	if err != nil {
		return fmt.Errorf("precompute: load same-day flights: %w", err)
	}

	// ── Step 3: enumerate every valid journey through F ─
	candidates := EnumerateJourneys(flight, sameDay, s.rules)

	// ── Step 4: persist, idempotently ───────────────────
	var created []*model.Journey
	var failed int
	for _, j := range candidates {
		inserted, err := s.journeys.InsertJourney(ctx, j)
		if err != nil {
			// Per-journey failures don't halt the event; the wholesale retry
			// converges because persistence is idempotent.
			log.Printf("[precompute] persist journey %s failed: %v", j.Signature(), err)
			failed++
			continue
		}
		if inserted {
			created = append(created, j)
		}
	}

	// ── Step 5: invalidate affected search-cache routes ─
	routes := make(map[[2]string]struct{}, len(created))
	for _, j := range created {
		routes[[2]string{j.Source, j.Destination}] = struct{}{}
	}
	for route := range routes {
		if err := s.invalidator.InvalidateRoute(ctx, route[0], route[1]); err != nil {
			log.Printf("[precompute] cache invalidation %s→%s failed: %v", route[0], route[1], err)
		}
	}

	log.Printf("[precompute] flight %s: %d candidates, %d new journeys, %d failed",
		flight.ID, len(candidates), len(created), failed)

	if failed > 0 {
		return fmt.Errorf("precompute: %d of %d journeys failed to persist", failed, len(candidates))
	}
	return nil
}

// ─── Traversal core ─────────────────────────────────────────

// EnumerateJourneys returns every valid journey (per rules) that includes
// the given flight, built from the same-day candidate set.
//
// Bounded bidirectional traversal: the frontier starts at the singleton
// path [flight] and grows by appending a connecting flight (forward) or
// prepending one (backward). A visited set keyed by the ordered flight-id
// signature guarantees each path is built at most once, so traversal order
// never affects the outcome. With n same-day flights and depth ≤ 3 the
// worst case is O(n²) paths.
func EnumerateJourneys(flight *model.Flight, sameDay []model.Flight, rules ConnectionRules) []*model.Journey {
	frontier := [][]model.Flight{{*flight}}
	visited := make(map[string]bool)

	var journeys []*model.Journey
	for len(frontier) > 0 {
		path := frontier[0]
		frontier = frontier[1:]

		sig := pathSignature(path)
		if visited[sig] {
			continue
		}
		visited[sig] = true

		if acceptPath(path, rules) {
			journeys = append(journeys, journeyFromPath(path))
		}

		if len(path) >= rules.MaxLegs {
			continue
		}

		first, last := path[0], path[len(path)-1]
		for i := range sameDay {
			g := &sameDay[i]
			if pathContains(path, g.ID) {
				continue
			}

			// Forward extension: g departs where the path ends.
			if g.Source == last.Destination &&
				layoverOK(last.ArrivalAt, g.DepartureAt, rules) &&
				g.ArrivalAt.Sub(first.DepartureAt) <= rules.MaxSpan {
				extended := make([]model.Flight, len(path), len(path)+1)
				copy(extended, path)
				frontier = append(frontier, append(extended, *g))
			}

			// Backward extension: g arrives where the path starts.
			if g.Destination == first.Source &&
				layoverOK(g.ArrivalAt, first.DepartureAt, rules) &&
				last.ArrivalAt.Sub(g.DepartureAt) <= rules.MaxSpan {
				extended := make([]model.Flight, 0, len(path)+1)
				extended = append(extended, *g)
				frontier = append(frontier, append(extended, path...))
			}
		}
	}
	return journeys
}

// acceptPath applies the journey admission rules to a candidate path.
// Layovers and flight-id distinctness hold by construction; the checks are
// kept anyway so the function is a complete statement of the invariants.
func acceptPath(path []model.Flight, rules ConnectionRules) bool {
	if len(path) < 1 || len(path) > rules.MaxLegs {
		return false
	}

	first, last := path[0], path[len(path)-1]
	if first.Source == last.Destination {
		return false
	}
	if last.ArrivalAt.Sub(first.DepartureAt) > rules.MaxSpan {
		return false
	}

	seen := make(map[string]bool, len(path))
	for i := range path {
		if seen[path[i].ID] {
			return false
		}
		seen[path[i].ID] = true

		if i > 0 {
			if path[i-1].Destination != path[i].Source {
				return false
			}
			if !layoverOK(path[i-1].ArrivalAt, path[i].DepartureAt, rules) {
				return false
			}
		}
	}
	return true
}

// layoverOK reports whether the connection window between an arrival and
// the next departure is inside [MinLayover, MaxLayover].
func layoverOK(arrival, nextDeparture time.Time, rules ConnectionRules) bool {
	layover := nextDeparture.Sub(arrival)
	return layover >= rules.MinLayover && layover <= rules.MaxLayover
}

func pathContains(path []model.Flight, flightID string) bool {
	for i := range path {
		if path[i].ID == flightID {
			return true
		}
	}
	return false
}

func pathSignature(path []model.Flight) string {
	ids := make([]string, len(path))
	for i := range path {
		ids[i] = path[i].ID
	}
	return model.Signature(ids)
}

// journeyFromPath builds the persistable journey for an accepted path.
func journeyFromPath(path []model.Flight) *model.Journey {
	legs := make([]model.JourneyLeg, len(path))
	var totalPrice float64
	for i := range path {
		legs[i] = model.JourneyLeg{FlightID: path[i].ID, Order: i + 1}
		totalPrice += path[i].Price
	}

	first, last := path[0], path[len(path)-1]
	return &model.Journey{
		ID:          uuid.NewString(),
		Legs:        legs,
		Source:      first.Source,
		Destination: last.Destination,
		DepartureAt: first.DepartureAt,
		ArrivalAt:   last.ArrivalAt,
		TotalPrice:  totalPrice,
		Status:      model.JourneyActive,
		CreatedAt:   time.Now().UTC(),
	}
}
