// Package reservation implements the seat hold store on Redis.
//
// Each flight has a sorted set keyed by seat id with score = expiry instant
// (unix milliseconds). A seat is reserved iff an entry exists and its expiry
// is in the future. All multi-seat operations run as single Lua scripts, so
// two concurrent callers can never both observe the same seat as free.
package reservation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	holdKeyPrefix = "seats:hold:"
	holdIndexKey  = "seats:hold:index"

	// keyTTLBuffer bounds Redis memory: the whole hold key expires a while
	// after the last possible seat expiry.
	keyTTLBuffer = 5 * time.Minute
)

// reserveScript atomically: (1) evicts expired holds, (2) fails if any
// requested seat still has a live hold, (3) inserts all requested seats,
// (4) refreshes the key TTL. Executes with no interleaving — either every
// seat is held or none is.
//
// KEYS[1] = hold key   ARGV[1] = now ms   ARGV[2] = expiry ms
// ARGV[3] = key TTL s  ARGV[4..] = seat ids
var reserveScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local expiry = tonumber(ARGV[2])
local keyttl = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now)

for i = 4, #ARGV do
  if redis.call('ZSCORE', key, ARGV[i]) then
    return 0
  end
end

for i = 4, #ARGV do
  redis.call('ZADD', key, expiry, ARGV[i])
end
redis.call('EXPIRE', key, keyttl)
return 1
`)

// Store holds short-lived seat reservations in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a reservation store on the given Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func holdKey(flightID string) string {
	return holdKeyPrefix + flightID
}

// Reserve places a hold on every requested seat of a flight for ttl.
// Returns false (with no writes) if any seat already has a live hold.
func (s *Store) Reserve(ctx context.Context, flightID string, seatIDs []string, ttl time.Duration) (bool, error) {
	if len(seatIDs) == 0 {
		return true, nil
	}

	now := time.Now()
	expiry := now.Add(ttl).UnixMilli()
	keyTTL := int64((ttl + keyTTLBuffer).Seconds())

	args := make([]interface{}, 0, 3+len(seatIDs))
	args = append(args, now.UnixMilli(), expiry, keyTTL)
	for _, id := range seatIDs {
		args = append(args, id)
	}

	res, err := reserveScript.Run(ctx, s.client, []string{holdKey(flightID)}, args...).Int()
	if err != nil {
		return false, fmt.Errorf("reservation: reserve %s: %w", flightID, err)
	}
	if res != 1 {
		return false, nil
	}

	// Track the flight for the background sweeper. Best-effort: a missed
	// index entry only delays cleanup, the key TTL still bounds memory.
	if err := s.client.SAdd(ctx, holdIndexKey, flightID).Err(); err == nil {
		s.client.Expire(ctx, holdIndexKey, 24*time.Hour)
	}
	return true, nil
}

// Release removes holds on the given seats. Missing entries are not errors.
func (s *Store) Release(ctx context.Context, flightID string, seatIDs []string) error {
	if len(seatIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(seatIDs))
	for i, id := range seatIDs {
		members[i] = id
	}
	if err := s.client.ZRem(ctx, holdKey(flightID), members...).Err(); err != nil {
		return fmt.Errorf("reservation: release %s: %w", flightID, err)
	}
	return nil
}

// Available returns the subset of candidate seats without a live hold.
// Read-side hint only — the booking commit transaction is authoritative.
func (s *Store) Available(ctx context.Context, flightID string, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	scores, err := s.client.ZMScore(ctx, holdKey(flightID), candidates...).Result()
	if err != nil {
		return nil, fmt.Errorf("reservation: available %s: %w", flightID, err)
	}

	nowMs := float64(time.Now().UnixMilli())
	free := make([]string, 0, len(candidates))
	for i, score := range scores {
		// ZMSCORE returns 0 for missing members in go-redis; a hold is live
		// only when its expiry is in the future.
		if score <= nowMs {
			free = append(free, candidates[i])
		}
	}
	return free, nil
}

// Cleanup evicts expired holds for a flight and returns the count removed.
func (s *Store) Cleanup(ctx context.Context, flightID string) (int64, error) {
	nowMs := strconv.FormatInt(time.Now().UnixMilli(), 10)
	removed, err := s.client.ZRemRangeByScore(ctx, holdKey(flightID), "-inf", nowMs).Result()
	if err != nil {
		return 0, fmt.Errorf("reservation: cleanup %s: %w", flightID, err)
	}

	// Drop flights with no remaining holds from the sweep index.
	if n, err := s.client.ZCard(ctx, holdKey(flightID)).Result(); err == nil && n == 0 {
		s.client.SRem(ctx, holdIndexKey, flightID)
	}
	return removed, nil
}

// HeldFlights lists flights that may still carry live holds.
func (s *Store) HeldFlights(ctx context.Context) ([]string, error) {
	flights, err := s.client.SMembers(ctx, holdIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("reservation: held flights: %w", err)
	}
	return flights, nil
}
