// Package repository provides database access for the flight booking system.
//
// All repositories share the same conventions: hand-written SQL against the
// schema in migrations/001_create_schema.up.sql, explicit transactions with
// a deferred rollback, and errors wrapped with the failing operation.
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

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("repository: not found")

// utcDayWindow returns [00:00, 24:00) UTC of the instant's UTC calendar day.
// The instant is normalized first: pgx scans timestamptz into process-local
// time, and the day boundaries must follow the UTC day regardless of host zone.
func utcDayWindow(at time.Time) (time.Time, time.Time) {
	at = at.UTC()
	start := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// FlightRepository provides access to flights, their seat inventory and the
// flight event outbox.
type FlightRepository struct {
	pool *pgxpool.Pool
}

// NewFlightRepository creates a new repository backed by the given PG pool.
func NewFlightRepository(pool *pgxpool.Pool) *FlightRepository {
	return &FlightRepository{pool: pool}
}

// CreateFlightWithSeats persists a flight, materialises its seat inventory
// and writes the flights.created outbox row — all in one transaction, so a
// flight can never exist without its seats or its pending event.
//
// Returns the outbox row id so the caller can clear it after a successful
// direct publish; on publish failure the sweeper picks the row up later.
func (r *FlightRepository) CreateFlightWithSeats(
	ctx context.Context,
	flight *model.Flight,
	seats []model.Seat,
	eventPayload []byte,
) (int64, error) {

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("create flight: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// ── Step 1: insert the flight ───────────────────────
	_, err = tx.Exec(ctx, `
		INSERT INTO flights (id, source, destination, departure_at, arrival_at,
		                     airplane_id, price, total_seats, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, flight.ID, flight.Source, flight.Destination, flight.DepartureAt, flight.ArrivalAt,
		flight.AirplaneID, flight.Price, flight.TotalSeats, flight.Status, flight.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("create flight: insert flight: %w", err)
	}

	// ── Step 2: materialise the seat inventory ──────────
	// Batched insert: one round trip per flight, not per seat.
	batch := &pgx.Batch{}
	for _, s := range seats {
		batch.Queue(`
			INSERT INTO seats (id, flight_id, seat_number, status)
			VALUES ($1, $2, $3, $4)
		`, s.ID, s.FlightID, s.SeatNumber, s.Status)
	}
	br := tx.SendBatch(ctx, batch)
	for range seats {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("create flight: insert seats: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("create flight: close seat batch: %w", err)
	}

	// ── Step 3: write the outbox row ────────────────────
	var outboxID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO flight_events_outbox (flight_id, payload)
		VALUES ($1, $2)
		RETURNING id
	`, flight.ID, eventPayload).Scan(&outboxID)
	if err != nil {
		return 0, fmt.Errorf("create flight: insert outbox: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("create flight: commit: %w", err)
	}
	return outboxID, nil
}

// GetFlight fetches a single flight by ID.
func (r *FlightRepository) GetFlight(ctx context.Context, id string) (*model.Flight, error) {
	f := &model.Flight{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, source, destination, departure_at, arrival_at,
		       airplane_id, price, total_seats, status, created_at
		FROM flights
		WHERE id = $1
	`, id).Scan(
		&f.ID, &f.Source, &f.Destination, &f.DepartureAt, &f.ArrivalAt,
		&f.AirplaneID, &f.Price, &f.TotalSeats, &f.Status, &f.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flight %s: %w", id, err)
	}
	return f, nil
}

// ListActiveByDepartureDay returns all ACTIVE flights departing on the given
// UTC calendar day. This is the candidate set for journey precomputation.
func (r *FlightRepository) ListActiveByDepartureDay(ctx context.Context, day time.Time) ([]model.Flight, error) {
	dayStart, dayEnd := utcDayWindow(day)

	rows, err := r.pool.Query(ctx, `
		SELECT id, source, destination, departure_at, arrival_at,
		       airplane_id, price, total_seats, status, created_at
		FROM flights
		WHERE status = 'ACTIVE'
		  AND departure_at >= $1
		  AND departure_at < $2
		ORDER BY departure_at ASC
	`, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list flights for %s: %w", dayStart.Format("2006-01-02"), err)
	}
	defer rows.Close()

	var flights []model.Flight
	for rows.Next() {
		var f model.Flight
		if err := rows.Scan(
			&f.ID, &f.Source, &f.Destination, &f.DepartureAt, &f.ArrivalAt,
			&f.AirplaneID, &f.Price, &f.TotalSeats, &f.Status, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan flight: %w", err)
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

// ─── Outbox ─────────────────────────────────────────────────

// PendingEvents returns up to limit unpublished flight events, oldest first.
func (r *FlightRepository) PendingEvents(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, flight_id, payload, created_at
		FROM flight_events_outbox
		ORDER BY id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending events: %w", err)
	}
	defer rows.Close()

	var events []model.OutboxEvent
	for rows.Next() {
		var e model.OutboxEvent
		if err := rows.Scan(&e.ID, &e.FlightID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteEvent removes an outbox row after its event is confirmed on the bus.
func (r *FlightRepository) DeleteEvent(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM flight_events_outbox WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete outbox event %d: %w", id, err)
	}
	return nil
}
