package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rkale/aeris/internal/model"
)

// SeatRepository provides read access to seat inventory. Seat state
// transitions happen only inside the booking transaction (see
// BookingRepository.CommitBooking).
type SeatRepository struct {
	pool *pgxpool.Pool
}

// NewSeatRepository creates a new repository backed by the given PG pool.
func NewSeatRepository(pool *pgxpool.Pool) *SeatRepository {
	return &SeatRepository{pool: pool}
}

// AvailableSeats returns up to limit AVAILABLE seats on a flight, lowest
// seat number first. The deterministic order keeps concurrent bookers
// contending for the same seats, which the reservation layer then arbitrates.
func (r *SeatRepository) AvailableSeats(ctx context.Context, flightID string, limit int) ([]model.Seat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, flight_id, seat_number, status
		FROM seats
		WHERE flight_id = $1 AND status = 'AVAILABLE'
		ORDER BY seat_number ASC
		LIMIT $2
	`, flightID, limit)
	if err != nil {
		return nil, fmt.Errorf("available seats for flight %s: %w", flightID, err)
	}
	defer rows.Close()

	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.FlightID, &s.SeatNumber, &s.Status); err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// CountAvailable returns the AVAILABLE seat count per flight for the given
// flight ids. Flights with zero available seats are absent from the map.
func (r *SeatRepository) CountAvailable(ctx context.Context, flightIDs []string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT flight_id, COUNT(*)::int
		FROM seats
		WHERE flight_id = ANY($1) AND status = 'AVAILABLE'
		GROUP BY flight_id
	`, flightIDs)
	if err != nil {
		return nil, fmt.Errorf("count available seats: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int, len(flightIDs))
	for rows.Next() {
		var flightID string
		var n int
		if err := rows.Scan(&flightID, &n); err != nil {
			return nil, fmt.Errorf("scan seat count: %w", err)
		}
		counts[flightID] = n
	}
	return counts, rows.Err()
}

// SeatsByBooking returns the seats assigned to a booking, ordered by flight
// and seat number. Used to rebuild the seat assignment list on reads.
func (r *SeatRepository) SeatsByBooking(ctx context.Context, bookingID string) ([]model.Seat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, flight_id, seat_number, status, booking_id
		FROM seats
		WHERE booking_id = $1
		ORDER BY flight_id, seat_number
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("seats for booking %s: %w", bookingID, err)
	}
	defer rows.Close()

	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.FlightID, &s.SeatNumber, &s.Status, &s.BookingID); err != nil {
			return nil, fmt.Errorf("scan booked seat: %w", err)
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}
