package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/rkale/aeris/internal/model"
)

// Publisher publishes flight events to the bus. Messages are keyed by
// flight id so redeliveries and replays stay ordered per flight.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher wraps a Kafka writer.
func NewPublisher(writer *kafka.Writer) *Publisher {
	return &Publisher{writer: writer}
}

// PublishFlightCreated sends one flights.created event.
func (p *Publisher) PublishFlightCreated(ctx context.Context, event *model.FlightCreatedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("bus: marshal flight event: %w", err)
	}
	return p.PublishRaw(ctx, event.FlightID, payload)
}

// PublishRaw sends an already-serialised event payload. Used by the outbox
// sweeper, which republishes stored payloads verbatim.
func (p *Publisher) PublishRaw(ctx context.Context, flightID string, payload []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(flightID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("bus: publish flight %s: %w", flightID, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
