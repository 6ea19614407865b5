// Package cache implements the journey search cache on Redis.
//
// Cached value: the raw journey candidate list for one (source, destination,
// departure date) triple, serialised as JSON. Seat availability is never
// cached — it changes on every booking and is computed after the cache read.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rkale/aeris/internal/model"
)

const journeyKeyPrefix = "journeys:"

// ErrMiss is returned on a cache miss.
var ErrMiss = errors.New("cache: miss")

// JourneyCache caches search candidate lists with a short TTL.
type JourneyCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewJourneyCache creates a journey cache with the given entry TTL.
func NewJourneyCache(client *redis.Client, ttl time.Duration) *JourneyCache {
	return &JourneyCache{client: client, ttl: ttl}
}

// Key builds the cache key journeys:<src>:<dst>:<date>.
func Key(source, destination string, day time.Time) string {
	return fmt.Sprintf("%s%s:%s:%s", journeyKeyPrefix, source, destination, day.UTC().Format("2006-01-02"))
}

// Get returns the cached journey list for a key, or ErrMiss.
func (c *JourneyCache) Get(ctx context.Context, key string) ([]model.Journey, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get %s: %w", key, err)
	}

	var journeys []model.Journey
	if err := json.Unmarshal(data, &journeys); err != nil {
		return nil, fmt.Errorf("cache: unmarshal %s: %w", key, err)
	}
	return journeys, nil
}

// Set stores a journey list under a key with the configured TTL.
func (c *JourneyCache) Set(ctx context.Context, key string, journeys []model.Journey) error {
	data, err := json.Marshal(journeys)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// InvalidateRoute deletes every cached entry for a (source, destination)
// pair, any date. Called when the precomputer creates a journey on that
// route so searches surface it before the TTL would expire it naturally.
func (c *JourneyCache) InvalidateRoute(ctx context.Context, source, destination string) error {
	pattern := fmt.Sprintf("%s%s:%s:*", journeyKeyPrefix, source, destination)

	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache: scan %s: %w", pattern, err)
	}

	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("cache: invalidate %s: %w", pattern, err)
		}
	}
	return nil
}
