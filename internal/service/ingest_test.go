package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkale/aeris/config"
	"github.com/rkale/aeris/internal/model"
)

var testIngestCfg = config.BookingConfig{MaxSeatsPerFlight: 500}

type fakeFlightStore struct {
	flight  *model.Flight
	seats   []model.Seat
	payload []byte
	deleted []int64
}

func (f *fakeFlightStore) CreateFlightWithSeats(_ context.Context, flight *model.Flight, seats []model.Seat, payload []byte) (int64, error) {
	f.flight = flight
	f.seats = seats
	f.payload = payload
	return 42, nil
}

func (f *fakeFlightStore) GetFlight(_ context.Context, _ string) (*model.Flight, error) {
	return f.flight, nil
}

func (f *fakeFlightStore) DeleteEvent(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakePublisher struct {
	events []*model.FlightCreatedEvent
	err    error
}

func (f *fakePublisher) PublishFlightCreated(_ context.Context, event *model.FlightCreatedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func validCreateRequest() *model.CreateFlightRequest {
	return &model.CreateFlightRequest{
		Source:      "DEL",
		Destination: "BOM",
		DepartureAt: time.Now().Add(48 * time.Hour),
		ArrivalAt:   time.Now().Add(50 * time.Hour),
		AirplaneID:  "A320-01",
		Price:       129.50,
		TotalSeats:  8,
	}
}

func TestCreateFlight_PersistsAndPublishes(t *testing.T) {
	store := &fakeFlightStore{}
	pub := &fakePublisher{}
	svc := NewIngestService(store, pub, testIngestCfg)

	flight, err := svc.CreateFlight(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, flight.ID)
	assert.Equal(t, model.FlightActive, flight.Status)
	assert.Len(t, store.seats, 8)
	assert.NotEmpty(t, store.payload)

	// Event published directly, then the outbox row cleaned up.
	require.Len(t, pub.events, 1)
	assert.Equal(t, flight.ID, pub.events[0].FlightID)
	assert.Equal(t, []int64{42}, store.deleted)
}

func TestCreateFlight_PublishFailureLeavesOutboxRow(t *testing.T) {
	store := &fakeFlightStore{}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewIngestService(store, pub, testIngestCfg)

	// The flight is still created; the sweeper owns the retry.
	flight, err := svc.CreateFlight(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, flight.ID)
	assert.Empty(t, store.deleted)
}

func TestCreateFlight_Validation(t *testing.T) {
	svc := NewIngestService(&fakeFlightStore{}, &fakePublisher{}, testIngestCfg)

	cases := []struct {
		name   string
		mutate func(*model.CreateFlightRequest)
	}{
		{"bad source code", func(r *model.CreateFlightRequest) { r.Source = "DL" }},
		{"lowercase destination", func(r *model.CreateFlightRequest) { r.Destination = "bom" }},
		{"same airports", func(r *model.CreateFlightRequest) { r.Destination = "DEL" }},
		{"departure in the past", func(r *model.CreateFlightRequest) { r.DepartureAt = time.Now().Add(-time.Hour) }},
		{"arrival before departure", func(r *model.CreateFlightRequest) { r.ArrivalAt = r.DepartureAt.Add(-time.Hour) }},
		{"missing airplane", func(r *model.CreateFlightRequest) { r.AirplaneID = "" }},
		{"zero price", func(r *model.CreateFlightRequest) { r.Price = 0 }},
		{"zero seats", func(r *model.CreateFlightRequest) { r.TotalSeats = 0 }},
		{"too many seats", func(r *model.CreateFlightRequest) { r.TotalSeats = 501 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreateRequest()
			tc.mutate(req)
			_, err := svc.CreateFlight(context.Background(), req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestSeatInventory_RowsOfSix(t *testing.T) {
	seats := SeatInventory("F1", 8)

	require.Len(t, seats, 8)
	numbers := make([]string, len(seats))
	for i, s := range seats {
		numbers[i] = s.SeatNumber
		assert.Equal(t, "F1", s.FlightID)
		assert.Equal(t, model.SeatAvailable, s.Status)
		assert.NotEmpty(t, s.ID)
	}
	assert.Equal(t, []string{"01A", "01B", "01C", "01D", "01E", "01F", "02A", "02B"}, numbers)
}
