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

// JourneyRepository persists precomputed journeys and serves the search path.
type JourneyRepository struct {
	pool *pgxpool.Pool
}

// NewJourneyRepository creates a new repository backed by the given PG pool.
func NewJourneyRepository(pool *pgxpool.Pool) *JourneyRepository {
	return &JourneyRepository{pool: pool}
}

// InsertJourney persists one journey and its legs. Idempotent: the partial
// unique index on journeys(signature) WHERE status='ACTIVE' rejects
// duplicates, and ON CONFLICT DO NOTHING swallows the conflict — a replayed
// flight-created event converges on the same journey set.
//
// Returns true if the journey was newly inserted, false if it already existed.
func (r *JourneyRepository) InsertJourney(ctx context.Context, j *model.Journey) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("insert journey: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// ── Step 1: insert the journey row ──────────────────
	tag, err := tx.Exec(ctx, `
		INSERT INTO journeys (id, signature, source, destination,
		                      departure_at, arrival_at, total_price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (signature) WHERE status = 'ACTIVE' DO NOTHING
	`, j.ID, j.Signature(), j.Source, j.Destination,
		j.DepartureAt, j.ArrivalAt, j.TotalPrice, j.Status, j.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert journey %s: %w", j.Signature(), err)
	}

	// Conflict: another event already created this journey. Treated as success.
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	// ── Step 2: insert the legs ─────────────────────────
	for _, leg := range j.Legs {
		_, err = tx.Exec(ctx, `
			INSERT INTO journey_flights (journey_id, flight_id, leg_order)
			VALUES ($1, $2, $3)
		`, j.ID, leg.FlightID, leg.Order)
		if err != nil {
			return false, fmt.Errorf("insert journey leg %s/%d: %w", j.ID, leg.Order, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("insert journey: commit: %w", err)
	}
	return true, nil
}

// GetJourney fetches a journey with its legs.
func (r *JourneyRepository) GetJourney(ctx context.Context, id string) (*model.Journey, error) {
	j := &model.Journey{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, source, destination, departure_at, arrival_at,
		       total_price, status, created_at
		FROM journeys
		WHERE id = $1
	`, id).Scan(
		&j.ID, &j.Source, &j.Destination, &j.DepartureAt, &j.ArrivalAt,
		&j.TotalPrice, &j.Status, &j.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get journey %s: %w", id, err)
	}

	legs, err := r.legsFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	j.Legs = legs[id]
	return j, nil
}

// SearchActive returns all ACTIVE journeys from source to destination
// departing on the given UTC calendar day, with their legs populated.
func (r *JourneyRepository) SearchActive(
	ctx context.Context,
	source, destination string,
	day time.Time,
) ([]model.Journey, error) {

	dayStart, dayEnd := utcDayWindow(day)

	rows, err := r.pool.Query(ctx, `
		SELECT id, source, destination, departure_at, arrival_at,
		       total_price, status, created_at
		FROM journeys
		WHERE status = 'ACTIVE'
		  AND source = $1
		  AND destination = $2
		  AND departure_at >= $3
		  AND departure_at < $4
		ORDER BY departure_at ASC
	`, source, destination, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("search journeys %s→%s: %w", source, destination, err)
	}
	defer rows.Close()

	var journeys []model.Journey
	var ids []string
	for rows.Next() {
		var j model.Journey
		if err := rows.Scan(
			&j.ID, &j.Source, &j.Destination, &j.DepartureAt, &j.ArrivalAt,
			&j.TotalPrice, &j.Status, &j.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan journey: %w", err)
		}
		journeys = append(journeys, j)
		ids = append(ids, j.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(journeys) == 0 {
		return nil, nil
	}

	legs, err := r.legsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range journeys {
		journeys[i].Legs = legs[journeys[i].ID]
	}
	return journeys, nil
}

// legsFor loads the ordered legs for a set of journeys in one query.
func (r *JourneyRepository) legsFor(ctx context.Context, journeyIDs []string) (map[string][]model.JourneyLeg, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT journey_id, flight_id, leg_order
		FROM journey_flights
		WHERE journey_id = ANY($1)
		ORDER BY journey_id, leg_order
	`, journeyIDs)
	if err != nil {
		return nil, fmt.Errorf("load journey legs: %w", err)
	}
	defer rows.Close()

	legs := make(map[string][]model.JourneyLeg, len(journeyIDs))
	for rows.Next() {
		var journeyID string
		var leg model.JourneyLeg
		if err := rows.Scan(&journeyID, &leg.FlightID, &leg.Order); err != nil {
			return nil, fmt.Errorf("scan journey leg: %w", err)
		}
		legs[journeyID] = append(legs[journeyID], leg)
	}
	return legs, rows.Err()
}
