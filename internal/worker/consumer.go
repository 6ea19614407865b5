// Package worker contains the background loops: the flights.created
// consumer pool, the outbox sweeper and the expired-hold sweeper.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rkale/aeris/config"
	"github.com/rkale/aeris/internal/model"
	"github.com/rkale/aeris/pkg/bus"
)

// Processor handles one flight-created event to completion.
type Processor interface {
	Process(ctx context.Context, event *model.FlightCreatedEvent) error
}

// Consumer runs a bounded pool of consumer-group readers over the
// flights.created topic. Each reader owns its assigned partitions, so one
// event is processed by exactly one worker, in partition order.
type Consumer struct {
	cfg       config.KafkaConfig
	processor Processor
}

// NewConsumer creates the consumer pool.
func NewConsumer(cfg config.KafkaConfig, processor Processor) *Consumer {
	return &Consumer{cfg: cfg, processor: processor}
}

// Run starts the worker pool and blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			c.consume(ctx, worker)
		}(i)
	}
	wg.Wait()
}

// consume is one worker's fetch → process → commit loop.
//
// Offsets are committed only after Process returns nil, so a crash mid-event
// redelivers it. Processing is idempotent, so redelivery converges.
func (c *Consumer) consume(ctx context.Context, worker int) {
	reader := bus.NewFlightsReader(c.cfg)
	defer reader.Close()

	log.Printf("[precompute] worker %d consuming %s", worker, c.cfg.FlightsTopic)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("[precompute] worker %d fetch: %v", worker, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		var event model.FlightCreatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			// Malformed payload: never processable, ack and move on.
			log.Printf("[precompute] worker %d dropping malformed event at offset %d: %v",
				worker, msg.Offset, err)
			c.commit(ctx, reader, msg, worker)
			continue
		}

		// Retry in place until the event processes or we shut down. The
		// event stays unacknowledged the whole time.
		backoff := time.Second
		for {
			err := c.processor.Process(ctx, &event)
			if err == nil {
				break
			}
			log.Printf("[precompute] worker %d event %s failed, retrying in %s: %v",
				worker, event.FlightID, backoff, err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}

		c.commit(ctx, reader, msg, worker)
	}
}

func (c *Consumer) commit(ctx context.Context, reader *kafka.Reader, msg kafka.Message, worker int) {
	if err := reader.CommitMessages(ctx, msg); err != nil {
		// The event will redeliver; idempotent processing absorbs it.
		log.Printf("[precompute] worker %d commit offset %d: %v", worker, msg.Offset, err)
	}
}
