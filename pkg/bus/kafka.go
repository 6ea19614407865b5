// Package bus provides Kafka connectivity for the flight event stream.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rkale/aeris/config"
)

// NewFlightsWriter creates a Kafka writer for the flights.created topic.
//
// Messages are keyed by flight ID with a hash balancer, so all events for
// one flight land on the same partition and are consumed in order.
func NewFlightsWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.FlightsTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 5 * time.Second,
		ReadTimeout:  5 * time.Second,
	}
}

// NewFlightsReader creates a consumer-group reader for the flights.created
// topic. Offsets are committed explicitly after an event is fully processed,
// giving at-least-once delivery to the precomputer.
func NewFlightsReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.FlightsTopic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0, // explicit commits only
	})
}

// HealthCheck dials the first broker and returns nil if reachable.
func HealthCheck(ctx context.Context, cfg config.KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("kafka: no brokers configured")
	}

	dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(dialCtx, "tcp", cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka: dial failed: %w", err)
	}
	return conn.Close()
}
