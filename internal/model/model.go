// Package model contains domain models for the flight booking system.
// These structs map to the PostgreSQL schema defined in migrations/001_create_schema.up.sql.
package model

import (
	"strings"
	"time"
)

// ─── Enums ──────────────────────────────────────────────────

type FlightStatus string

const (
	FlightActive    FlightStatus = "ACTIVE"
	FlightCancelled FlightStatus = "CANCELLED"
	FlightDelayed   FlightStatus = "DELAYED"
	FlightCompleted FlightStatus = "COMPLETED"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatReserved  SeatStatus = "RESERVED"
	SeatBooked    SeatStatus = "BOOKED"
	SeatBlocked   SeatStatus = "BLOCKED"
)

type JourneyStatus string

const (
	JourneyActive   JourneyStatus = "ACTIVE"
	JourneyInactive JourneyStatus = "INACTIVE"
)

type BookingStatus string

const (
	BookingReserved  BookingStatus = "RESERVED"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingRefunded  BookingStatus = "REFUNDED"
)

// ─── Domain Models ──────────────────────────────────────────

// Flight maps to the `flights` table. Flights are immutable schedule units:
// the core never mutates them after admin ingestion.
type Flight struct {
	ID          string       `json:"id"`
	Source      string       `json:"sourceAirport"`
	Destination string       `json:"destinationAirport"`
	DepartureAt time.Time    `json:"departureTime"`
	ArrivalAt   time.Time    `json:"arrivalTime"`
	AirplaneID  string       `json:"airplaneId"`
	Price       float64      `json:"price"`
	TotalSeats  int          `json:"totalSeats"`
	Status      FlightStatus `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Seat maps to the `seats` table — one row per physical seat per flight.
type Seat struct {
	ID         string     `json:"id"`
	FlightID   string     `json:"flightId"`
	SeatNumber string     `json:"seatNumber"`
	Status     SeatStatus `json:"status"`
	BookingID  *string    `json:"bookingId,omitempty"`
}

// JourneyLeg is one flight within a journey, with its 1-based position.
type JourneyLeg struct {
	FlightID string `json:"flightId"`
	Order    int    `json:"order"`
}

// Journey maps to the `journeys` table plus its `journey_flights` rows.
// A journey is an ordered sequence of 1–3 connecting flights; uniqueness is
// enforced over the ordered flight-id tuple (the signature) for ACTIVE rows.
type Journey struct {
	ID          string        `json:"id"`
	Legs        []JourneyLeg  `json:"legs"`
	Source      string        `json:"sourceAirport"`
	Destination string        `json:"destinationAirport"`
	DepartureAt time.Time     `json:"departureTime"`
	ArrivalAt   time.Time     `json:"arrivalTime"`
	TotalPrice  float64       `json:"totalPrice"`
	Status      JourneyStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Duration returns the total journey span (first departure to last arrival).
func (j *Journey) Duration() time.Duration {
	return j.ArrivalAt.Sub(j.DepartureAt)
}

// FlightIDs returns the ordered flight ids of the journey's legs.
func (j *Journey) FlightIDs() []string {
	ids := make([]string, len(j.Legs))
	for i, leg := range j.Legs {
		ids[i] = leg.FlightID
	}
	return ids
}

// Signature returns the journey's uniqueness key: the ordered flight-id
// tuple joined with ">". Two journeys over the same flights in the same
// order always produce the same signature.
func (j *Journey) Signature() string {
	return Signature(j.FlightIDs())
}

// Signature builds the uniqueness key for an ordered sequence of flight ids.
func Signature(flightIDs []string) string {
	return strings.Join(flightIDs, ">")
}

// Booking maps to the `bookings` table.
type Booking struct {
	ID             string        `json:"id"`
	UserID         string        `json:"userId"`
	JourneyID      string        `json:"journeyId"`
	PassengerCount int           `json:"passengerCount"`
	Status         BookingStatus `json:"status"`
	PaymentID      string        `json:"paymentId"`
	BookedAt       time.Time     `json:"bookedAt"`
}

// SeatAssignment is one booked seat in the booking response.
type SeatAssignment struct {
	FlightID   string `json:"flightId"`
	SeatID     string `json:"seatId"`
	SeatNumber string `json:"seatNumber"`
}

// OutboxEvent maps to the `flight_events_outbox` table. A row is written in
// the same transaction as its flight, so a crash between commit and publish
// never loses the event — the outbox sweeper retries it.
type OutboxEvent struct {
	ID        int64     `json:"id"`
	FlightID  string    `json:"flightId"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
}

// ─── Events ─────────────────────────────────────────────────

// FlightCreatedEvent is the payload published to the flights.created topic.
type FlightCreatedEvent struct {
	FlightID    string    `json:"flightId"`
	Source      string    `json:"sourceAirport"`
	Destination string    `json:"destinationAirport"`
	DepartureAt time.Time `json:"departureInstant"`
	EmittedAt   time.Time `json:"emittedAt"`
}

// ─── Requests / Responses ───────────────────────────────────

// CreateFlightRequest is the admin flight-ingestion payload.
type CreateFlightRequest struct {
	Source      string    `json:"sourceAirport"`
	Destination string    `json:"destinationAirport"`
	DepartureAt time.Time `json:"departureTime"`
	ArrivalAt   time.Time `json:"arrivalTime"`
	AirplaneID  string    `json:"airplaneId"`
	Price       float64   `json:"price"`
	TotalSeats  int       `json:"totalSeats"`
}

// SortKey selects the search result ordering.
type SortKey string

const (
	SortByPrice    SortKey = "price"
	SortByDuration SortKey = "duration"
	SortByNone     SortKey = ""
)

// SearchRequest is the parsed passenger search query.
type SearchRequest struct {
	Source        string
	Destination   string
	DepartureDate time.Time // midnight UTC of the requested calendar day
	Passengers    int
	SortBy        SortKey
	Limit         int
}

// SearchResult is one journey in the search response, annotated with the
// live seat availability computed after the cache read.
type SearchResult struct {
	Journey        Journey `json:"journey"`
	AvailableSeats int     `json:"availableSeats"`
}

// BookingRequest is the passenger booking payload.
type BookingRequest struct {
	UserID         string `json:"-"` // from the X-User-Id header
	JourneyID      string `json:"journeyId"`
	PassengerCount int    `json:"passengerCount"`
	PaymentID      string `json:"paymentId"`
}

// BookingResponse is the booking resource returned to the caller.
type BookingResponse struct {
	Booking Booking          `json:"booking"`
	Seats   []SeatAssignment `json:"seats"`
}
