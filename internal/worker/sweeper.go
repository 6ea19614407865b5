package worker

import (
	"context"
	"log"
	"time"

	"github.com/rkale/aeris/internal/model"
)

// OutboxSource defines the outbox reads used by the publisher sweep.
type OutboxSource interface {
	PendingEvents(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	DeleteEvent(ctx context.Context, id int64) error
}

// RawPublisher publishes an already-serialised event payload.
type RawPublisher interface {
	PublishRaw(ctx context.Context, flightID string, payload []byte) error
}

// outboxBatchSize bounds one sweep so a large backlog drains in chunks.
const outboxBatchSize = 100

// OutboxSweeper republishes flight events whose direct publish never
// happened (bus down, process crash between commit and publish). The
// ingest path deletes its outbox row after a successful publish, so under
// normal operation the sweep finds nothing.
type OutboxSweeper struct {
	outbox    OutboxSource
	publisher RawPublisher
	every     time.Duration
}

// NewOutboxSweeper creates the outbox sweeper.
func NewOutboxSweeper(outbox OutboxSource, publisher RawPublisher, every time.Duration) *OutboxSweeper {
	return &OutboxSweeper{outbox: outbox, publisher: publisher, every: every}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *OutboxSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	log.Printf("[outbox] sweeping every %s", s.every)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep publishes one batch of pending events. An event's outbox row is
// deleted only after the bus accepts it; a duplicate publish is harmless
// because the consumer is idempotent.
func (s *OutboxSweeper) Sweep(ctx context.Context) {
	events, err := s.outbox.PendingEvents(ctx, outboxBatchSize)
	if err != nil {
		log.Printf("[outbox] load pending events: %v", err)
		return
	}
	if len(events) == 0 {
		return
	}

	var published int
	for _, ev := range events {
		if err := s.publisher.PublishRaw(ctx, ev.FlightID, ev.Payload); err != nil {
			log.Printf("[outbox] republish flight %s: %v", ev.FlightID, err)
			continue
		}
		if err := s.outbox.DeleteEvent(ctx, ev.ID); err != nil {
			log.Printf("[outbox] delete event %d: %v", ev.ID, err)
			continue
		}
		published++
	}
	log.Printf("[outbox] ✓ Republished %d of %d pending events", published, len(events))
}

// HoldStore defines the lock-store maintenance used by the hold sweeper.
type HoldStore interface {
	HeldFlights(ctx context.Context) ([]string, error)
	Cleanup(ctx context.Context, flightID string) (int64, error)
}

// HoldSweeper trims expired seat holds. Expiry is already enforced at read
// time by the reservation script; the sweep just keeps the sorted sets from
// accumulating dead members between reservations.
type HoldSweeper struct {
	holds HoldStore
	every time.Duration
}

// NewHoldSweeper creates the hold sweeper.
func NewHoldSweeper(holds HoldStore, every time.Duration) *HoldSweeper {
	return &HoldSweeper{holds: holds, every: every}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *HoldSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	log.Printf("[holds] sweeping every %s", s.every)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep removes expired members from every tracked hold set.
func (s *HoldSweeper) Sweep(ctx context.Context) {
	flights, err := s.holds.HeldFlights(ctx)
	if err != nil {
		log.Printf("[holds] list held flights: %v", err)
		return
	}

	var removed int64
	for _, flightID := range flights {
		n, err := s.holds.Cleanup(ctx, flightID)
		if err != nil {
			log.Printf("[holds] cleanup flight %s: %v", flightID, err)
			continue
		}
		removed += n
	}
	if removed > 0 {
		log.Printf("[holds] ⏳ Reclaimed %d expired holds across %d flights", removed, len(flights))
	}
}
