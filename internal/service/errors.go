package service

import (
	"errors"

	"github.com/rkale/aeris/internal/repository"
)

// Error kinds surfaced to callers. Handlers map these to HTTP statuses;
// everything unclassified is treated as internal and logged with the
// request correlation id.
var (
	// ErrValidation is returned when input fails static checks.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInsufficientSeats is returned when a leg has fewer available seats
	// than the requested passenger count.
	ErrInsufficientSeats = errors.New("insufficient seats available")

	// ErrSeatsRaceLost is returned when a concurrent booker won the seats;
	// the caller may retry.
	ErrSeatsRaceLost = errors.New("seats taken by a concurrent booking")

	// ErrStoreUnavailable is returned when the lock store, relational store
	// or bus is unreachable; the caller may retry after backoff.
	ErrStoreUnavailable = errors.New("backing store unavailable")
)

// classifyLookupError maps repository lookup failures to service error kinds.
func classifyLookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
