package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rkale/aeris/internal/model"
)

type fakeOutbox struct {
	pending []model.OutboxEvent
	deleted []int64
}

func (f *fakeOutbox) PendingEvents(_ context.Context, limit int) ([]model.OutboxEvent, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeOutbox) DeleteEvent(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeRawPublisher struct {
	published map[string][]byte
	failFor   map[string]bool
}

func (f *fakeRawPublisher) PublishRaw(_ context.Context, flightID string, payload []byte) error {
	if f.failFor[flightID] {
		return errors.New("broker unavailable")
	}
	if f.published == nil {
		f.published = make(map[string][]byte)
	}
	f.published[flightID] = payload
	return nil
}

func TestOutboxSweep_PublishesAndDeletes(t *testing.T) {
	outbox := &fakeOutbox{pending: []model.OutboxEvent{
		{ID: 1, FlightID: "F1", Payload: []byte(`{"flightId":"F1"}`)},
		{ID: 2, FlightID: "F2", Payload: []byte(`{"flightId":"F2"}`)},
	}}
	pub := &fakeRawPublisher{}

	NewOutboxSweeper(outbox, pub, time.Minute).Sweep(context.Background())

	assert.Len(t, pub.published, 2)
	assert.ElementsMatch(t, []int64{1, 2}, outbox.deleted)
}

func TestOutboxSweep_KeepsRowWhenPublishFails(t *testing.T) {
	outbox := &fakeOutbox{pending: []model.OutboxEvent{
		{ID: 1, FlightID: "F1", Payload: []byte(`{}`)},
		{ID: 2, FlightID: "F2", Payload: []byte(`{}`)},
	}}
	pub := &fakeRawPublisher{failFor: map[string]bool{"F1": true}}

	NewOutboxSweeper(outbox, pub, time.Minute).Sweep(context.Background())

	// F1 stays pending for the next sweep; F2 drains normally.
	assert.ElementsMatch(t, []int64{2}, outbox.deleted)
}

type fakeHoldStore struct {
	flights []string
	removed map[string]int64
	cleaned []string
}

func (f *fakeHoldStore) HeldFlights(_ context.Context) ([]string, error) {
	return f.flights, nil
}

func (f *fakeHoldStore) Cleanup(_ context.Context, flightID string) (int64, error) {
	f.cleaned = append(f.cleaned, flightID)
	return f.removed[flightID], nil
}

func TestHoldSweep_VisitsEveryHeldFlight(t *testing.T) {
	holds := &fakeHoldStore{
		flights: []string{"F1", "F2"},
		removed: map[string]int64{"F1": 3, "F2": 0},
	}

	NewHoldSweeper(holds, time.Minute).Sweep(context.Background())

	assert.ElementsMatch(t, []string{"F1", "F2"}, holds.cleaned)
}
