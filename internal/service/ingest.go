package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/rkale/aeris/config"
	"github.com/rkale/aeris/internal/model"
)

// airportCodeRe matches 3-letter uppercase IATA codes.
var airportCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// FlightStore defines the persistence operations used by IngestService.
type FlightStore interface {
	CreateFlightWithSeats(ctx context.Context, flight *model.Flight, seats []model.Seat, eventPayload []byte) (int64, error)
	GetFlight(ctx context.Context, id string) (*model.Flight, error)
	DeleteEvent(ctx context.Context, id int64) error
}

// EventPublisher defines the bus operations used by IngestService.
type EventPublisher interface {
	PublishFlightCreated(ctx context.Context, event *model.FlightCreatedEvent) error
}

// IngestService validates and persists new flights, materialises their seat
// inventory and emits flights.created events for the journey precomputer.
type IngestService struct {
	flights   FlightStore
	publisher EventPublisher
	cfg       config.BookingConfig
}

// NewIngestService creates an ingest service.
func NewIngestService(flights FlightStore, publisher EventPublisher, cfg config.BookingConfig) *IngestService {
	return &IngestService{flights: flights, publisher: publisher, cfg: cfg}
}

// CreateFlight validates the request, persists the flight with its seats and
// outbox row in one transaction, then attempts a direct event publish.
//
// Publish failure does not roll anything back: the outbox row survives and
// the sweeper republishes it. Publishing is therefore at-least-once, which
// the precomputer absorbs through idempotent journey persistence.
func (s *IngestService) CreateFlight(ctx context.Context, req *model.CreateFlightRequest) (*model.Flight, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	flight := &model.Flight{
		ID:          uuid.NewString(),
		Source:      req.Source,
		Destination: req.Destination,
		DepartureAt: req.DepartureAt.UTC(),
		ArrivalAt:   req.ArrivalAt.UTC(),
		AirplaneID:  req.AirplaneID,
		Price:       req.Price,
		TotalSeats:  req.TotalSeats,
		Status:      model.FlightActive,
		CreatedAt:   now,
	}

	event := &model.FlightCreatedEvent{
		FlightID:    flight.ID,
		Source:      flight.Source,
		Destination: flight.Destination,
		DepartureAt: flight.DepartureAt,
		EmittedAt:   now,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("ingest: marshal event: %w", err)
	}

	outboxID, err := s.flights.CreateFlightWithSeats(ctx, flight, SeatInventory(flight.ID, flight.TotalSeats), payload)
	if err != nil {
		return nil, fmt.Errorf("ingest: persist flight: %w", err)
	}

	// Direct publish is an optimisation over the sweeper, nothing more.
	if err := s.publisher.PublishFlightCreated(ctx, event); err != nil {
		log.Printf("[ingest] publish failed for flight %s, leaving to outbox sweeper: %v", flight.ID, err)
	} else if err := s.flights.DeleteEvent(ctx, outboxID); err != nil {
		log.Printf("[ingest] outbox cleanup failed for flight %s (event may republish): %v", flight.ID, err)
	}

	log.Printf("[ingest] ✓ Created flight %s %s→%s with %d seats",
		flight.ID, flight.Source, flight.Destination, flight.TotalSeats)
	return flight, nil
}

// GetFlight returns a flight by id.
func (s *IngestService) GetFlight(ctx context.Context, id string) (*model.Flight, error) {
	flight, err := s.flights.GetFlight(ctx, id)
	if err != nil {
		return nil, classifyLookupError(err)
	}
	return flight, nil
}

// validate applies the static admission checks for a new flight.
func (s *IngestService) validate(req *model.CreateFlightRequest) error {
	switch {
	case !airportCodeRe.MatchString(req.Source):
		return fmt.Errorf("%w: sourceAirport must be a 3-letter code", ErrValidation)
	case !airportCodeRe.MatchString(req.Destination):
		return fmt.Errorf("%w: destinationAirport must be a 3-letter code", ErrValidation)
	case req.Source == req.Destination:
		return fmt.Errorf("%w: source and destination must differ", ErrValidation)
	case req.DepartureAt.IsZero() || req.ArrivalAt.IsZero():
		return fmt.Errorf("%w: departureTime and arrivalTime are required", ErrValidation)
	case !req.DepartureAt.After(time.Now()):
		return fmt.Errorf("%w: departureTime must be in the future", ErrValidation)
	case !req.ArrivalAt.After(req.DepartureAt):
		return fmt.Errorf("%w: arrivalTime must be after departureTime", ErrValidation)
	case req.AirplaneID == "":
		return fmt.Errorf("%w: airplaneId is required", ErrValidation)
	case req.Price <= 0:
		return fmt.Errorf("%w: price must be positive", ErrValidation)
	case req.TotalSeats <= 0 || req.TotalSeats > s.cfg.MaxSeatsPerFlight:
		return fmt.Errorf("%w: totalSeats must be in (0, %d]", ErrValidation, s.cfg.MaxSeatsPerFlight)
	}
	return nil
}

// SeatInventory materialises the seat rows for a new flight: rows of six,
// numbered 1A..NF, truncated to the requested total.
func SeatInventory(flightID string, totalSeats int) []model.Seat {
	const lettersPerRow = 6

	seats := make([]model.Seat, 0, totalSeats)
	for i := 0; i < totalSeats; i++ {
		row := i/lettersPerRow + 1
		letter := rune('A' + i%lettersPerRow)
		seats = append(seats, model.Seat{
			ID:         uuid.NewString(),
			FlightID:   flightID,
			SeatNumber: fmt.Sprintf("%02d%c", row, letter),
			Status:     model.SeatAvailable,
		})
	}
	return seats
}
