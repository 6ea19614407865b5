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

// JourneyReader defines the journey reads used by BookingService.
type JourneyReader interface {
	GetJourney(ctx context.Context, id string) (*model.Journey, error)
}

// SeatPicker defines the seat reads used by BookingService.
type SeatPicker interface {
	AvailableSeats(ctx context.Context, flightID string, limit int) ([]model.Seat, error)
	SeatsByBooking(ctx context.Context, bookingID string) ([]model.Seat, error)
}

// BookingStore defines the booking persistence used by BookingService.
type BookingStore interface {
	CommitBooking(ctx context.Context, booking *model.Booking, legs []repository.LegSeats) ([]model.SeatAssignment, error)
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]model.Booking, error)
}

// SeatReserver defines the lock-store operations used by BookingService.
type SeatReserver interface {
	Reserve(ctx context.Context, flightID string, seatIDs []string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, flightID string, seatIDs []string) error
}

// BookingService orchestrates the two-layer booking protocol.
//
// Concurrency model:
//   - Redis reservation is the optimistic admission filter: it rejects most
//     races cheaply and bounds how many bookers reach the database.
//   - The relational commit transaction is the source of truth: conditional
//     seat updates with a row-count check make over-booking impossible even
//     when a reservation expires mid-protocol.
//   - Reservations self-expire at the TTL, so a crashed booker never strands
//     seats.
type BookingService struct {
	journeys JourneyReader
	seats    SeatPicker
	bookings BookingStore
	reserver SeatReserver
	cfg      config.BookingConfig
}

// NewBookingService creates a booking service.
func NewBookingService(
	journeys JourneyReader,
	seats SeatPicker,
	bookings BookingStore,
	reserver SeatReserver,
	cfg config.BookingConfig,
) *BookingService {
	return &BookingService{
		journeys: journeys,
		seats:    seats,
		bookings: bookings,
		reserver: reserver,
		cfg:      cfg,
	}
}

// Book is the main booking entry point.
//
// Flow:
//  1. Resolve the journey and pick p AVAILABLE seats per leg.
//  2. Reserve the chosen seats leg by leg in the lock store. Any rejection
//     releases everything already held and fails with ErrSeatsRaceLost.
//  3. Commit durably: booking row + conditional seat flips in one
//     transaction. A row-count shortfall means another booker slipped past
//     the reservation layer — roll back and fail with ErrSeatsRaceLost.
//  4. Release the holds (best-effort; committed seats are BOOKED in the
//     store of record, so a leaked hold merely expires at the TTL).
func (s *BookingService) Book(ctx context.Context, req *model.BookingRequest) (*model.BookingResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	// ── Step 1: resolve journey and choose seats ────────
	journey, err := s.journeys.GetJourney(ctx, req.JourneyID)
	if err != nil {
		return nil, classifyLookupError(err)
	}

	legs := make([]repository.LegSeats, 0, len(journey.Legs))
	for _, leg := range journey.Legs {
		seats, err := s.seats.AvailableSeats(ctx, leg.FlightID, req.PassengerCount)
		if err != nil {
			return nil, fmt.Errorf("%w: pick seats: %v", ErrStoreUnavailable, err)
		}
		if len(seats) < req.PassengerCount {
			return nil, fmt.Errorf("%w: flight %s has %d of %d needed",
				ErrInsufficientSeats, leg.FlightID, len(seats), req.PassengerCount)
		}

		seatIDs := make([]string, req.PassengerCount)
		for i := 0; i < req.PassengerCount; i++ {
			seatIDs[i] = seats[i].ID
		}
		legs = append(legs, repository.LegSeats{FlightID: leg.FlightID, SeatIDs: seatIDs})
	}

	// ── Step 2: reserve every leg in the lock store ─────
	for i, leg := range legs {
		ok, err := s.reserver.Reserve(ctx, leg.FlightID, leg.SeatIDs, s.cfg.ReservationTTL)
		if err != nil {
			s.releaseLegs(ctx, legs[:i])
			return nil, fmt.Errorf("%w: reserve seats: %v", ErrStoreUnavailable, err)
		}
		if !ok {
			// A concurrent booker holds at least one of our seats.
			s.releaseLegs(ctx, legs[:i])
			return nil, fmt.Errorf("%w: flight %s", ErrSeatsRaceLost, leg.FlightID)
		}
	}

	// ── Step 3: durable commit ──────────────────────────
	booking := &model.Booking{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		JourneyID:      journey.ID,
		PassengerCount: req.PassengerCount,
		Status:         model.BookingReserved,
		PaymentID:      req.PaymentID,
		BookedAt:       time.Now().UTC(),
	}

	assignments, err := s.bookings.CommitBooking(ctx, booking, legs)
	if err != nil {
		s.releaseLegs(ctx, legs)
		if errors.Is(err, repository.ErrSeatConflict) {
			return nil, fmt.Errorf("%w: seat taken at commit", ErrSeatsRaceLost)
		}
		// Ambiguous failure after a write attempt: surface as internal and
		// let the TTL restore the held seats.
		return nil, fmt.Errorf("booking: commit: %w", err)
	}

	// ── Step 4: drop the holds ──────────────────────────
	s.releaseLegs(ctx, legs)

	log.Printf("[booking] ✓ Booked journey %s for user %s: %d passengers, %d seats",
		journey.ID, req.UserID, req.PassengerCount, len(assignments))

	return &model.BookingResponse{Booking: *booking, Seats: assignments}, nil
}

// GetBooking returns a booking with its seat assignments.
func (s *BookingService) GetBooking(ctx context.Context, id string) (*model.BookingResponse, error) {
	booking, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, classifyLookupError(err)
	}

	seats, err := s.seats.SeatsByBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: load seats: %v", ErrStoreUnavailable, err)
	}

	assignments := make([]model.SeatAssignment, len(seats))
	for i, seat := range seats {
		assignments[i] = model.SeatAssignment{
			FlightID:   seat.FlightID,
			SeatID:     seat.ID,
			SeatNumber: seat.SeatNumber,
		}
	}
	return &model.BookingResponse{Booking: *booking, Seats: assignments}, nil
}

// ListUserBookings returns a user's bookings, newest first.
func (s *BookingService) ListUserBookings(ctx context.Context, userID string) ([]model.Booking, error) {
	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list bookings: %v", ErrStoreUnavailable, err)
	}
	return bookings, nil
}

// releaseLegs best-effort releases every hold taken so far. Failures are
// logged only — the TTL reclaims anything left behind.
func (s *BookingService) releaseLegs(ctx context.Context, legs []repository.LegSeats) {
	for _, leg := range legs {
		if err := s.reserver.Release(ctx, leg.FlightID, leg.SeatIDs); err != nil {
			log.Printf("[booking] release %s failed (TTL will reclaim): %v", leg.FlightID, err)
		}
	}
}

func (s *BookingService) validate(req *model.BookingRequest) error {
	switch {
	case req.UserID == "":
		return fmt.Errorf("%w: X-User-Id header is required", ErrValidation)
	case req.JourneyID == "":
		return fmt.Errorf("%w: journeyId is required", ErrValidation)
	case req.PaymentID == "":
		return fmt.Errorf("%w: paymentId is required", ErrValidation)
	case req.PassengerCount < 1 || req.PassengerCount > s.cfg.MaxSeatsPerBooking:
		return fmt.Errorf("%w: passengerCount must be in [1, %d]", ErrValidation, s.cfg.MaxSeatsPerBooking)
	}
	return nil
}
