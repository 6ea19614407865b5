package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rkale/aeris/internal/model"
)

// ErrSeatConflict is returned when a seat expected to be AVAILABLE was
// already taken at commit time — a concurrent booking won the race.
var ErrSeatConflict = errors.New("repository: seat no longer available")

// DefaultCommitTimeout is the maximum duration for a complete booking
// commit transaction, including row lock wait time.
const DefaultCommitTimeout = 5 * time.Second

// LegSeats is the chosen seat set for one leg of a journey.
type LegSeats struct {
	FlightID string
	SeatIDs  []string
}

// BookingRepository handles transactional booking commits.
type BookingRepository struct {
	pool *pgxpool.Pool
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// CommitBooking performs the durable half of the booking protocol in one
// serialized transaction.
//
// Concurrency strategy: CONDITIONAL UPDATE + ROW COUNT CHECK
//
//	The Redis reservation layer admits at most one booker per seat, but a
//	reservation can expire between reserve and commit. The conditional
//	UPDATE ... WHERE status = 'AVAILABLE' is the final safety net: if two
//	bookings both slipped past reservation, at most one can flip each seat
//	row, and the loser rolls back with ErrSeatConflict.
//
// Steps:
//  1. INSERT the booking with status RESERVED.
//  2. For every chosen seat, UPDATE ... SET status='BOOKED', booking_id=...
//     WHERE id=? AND status='AVAILABLE', RETURNING the seat number.
//  3. If any update touched zero rows, roll back (ErrSeatConflict).
//  4. Flip the booking to CONFIRMED and commit.
//
// No partial booking is ever observable: either all p × legs seats flip and
// the booking is CONFIRMED, or the transaction rolls back entirely.
func (r *BookingRepository) CommitBooking(
	ctx context.Context,
	booking *model.Booking,
	legs []LegSeats,
) ([]model.SeatAssignment, error) {

	txCtx, cancel := context.WithTimeout(ctx, DefaultCommitTimeout)
	defer cancel()

	tx, err := r.pool.BeginTx(txCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("commit booking: begin tx: %w", err)
	}
	// Defer rollback — no-op if tx was already committed.
	defer tx.Rollback(ctx)

	// ── Step 1: insert the booking (RESERVED) ───────────
	_, err = tx.Exec(txCtx, `
		INSERT INTO bookings (id, user_id, journey_id, passenger_count, status, payment_id, booked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, booking.ID, booking.UserID, booking.JourneyID, booking.PassengerCount,
		model.BookingReserved, booking.PaymentID, booking.BookedAt)
	if err != nil {
		return nil, fmt.Errorf("commit booking: insert booking: %w", err)
	}

	// ── Step 2: conditionally flip every seat ───────────
	var assignments []model.SeatAssignment
	for _, leg := range legs {
		for _, seatID := range leg.SeatIDs {
			var seatNumber string
			err = tx.QueryRow(txCtx, `
				UPDATE seats
				SET status = 'BOOKED', booking_id = $1
				WHERE id = $2 AND status = 'AVAILABLE'
				RETURNING seat_number
			`, booking.ID, seatID).Scan(&seatNumber)
			if errors.Is(err, pgx.ErrNoRows) {
				// Seat was taken between reservation and commit.
				return nil, ErrSeatConflict
			}
			if err != nil {
				return nil, fmt.Errorf("commit booking: book seat %s: %w", seatID, err)
			}
			assignments = append(assignments, model.SeatAssignment{
				FlightID:   leg.FlightID,
				SeatID:     seatID,
				SeatNumber: seatNumber,
			})
		}
	}

	// ── Step 3: every seat flipped — confirm ────────────
	_, err = tx.Exec(txCtx, `
		UPDATE bookings SET status = 'CONFIRMED' WHERE id = $1
	`, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("commit booking: confirm: %w", err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, fmt.Errorf("commit booking: commit: %w", err)
	}

	booking.Status = model.BookingConfirmed
	return assignments, nil
}

// GetBooking fetches a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	b := &model.Booking{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, journey_id, passenger_count, status, payment_id, booked_at
		FROM bookings
		WHERE id = $1
	`, id).Scan(
		&b.ID, &b.UserID, &b.JourneyID, &b.PassengerCount, &b.Status, &b.PaymentID, &b.BookedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", id, err)
	}
	return b, nil
}

// ListByUser returns a user's bookings, newest first.
func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, journey_id, passenger_count, status, payment_id, booked_at
		FROM bookings
		WHERE user_id = $1
		ORDER BY booked_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings for user %s: %w", userID, err)
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.JourneyID, &b.PassengerCount, &b.Status, &b.PaymentID, &b.BookedAt,
		); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
