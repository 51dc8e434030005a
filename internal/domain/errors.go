package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoTicketsProvided  = errors.New("no tickets provided")
	ErrFlightNotFound     = errors.New("flight not found")
	ErrRouteNotFound      = errors.New("route not found")
	ErrInvalidSeats       = errors.New("invalid seats")
	ErrSeatsAlreadyBooked = errors.New("seats already booked")
	ErrDuplicateFlight    = errors.New("duplicate flight")
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrAlreadyCheckedIn   = errors.New("ticket already checked in")
	ErrInvalidDateFormat  = errors.New("invalid date format")
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrBookingNotFound    = errors.New("booking not found")
	ErrBookingExists      = errors.New("booking already exists")
	ErrAirportNotFound    = errors.New("airport not found")
	ErrCompanyNotFound    = errors.New("company information not found")
	ErrFlightNotOperating = errors.New("flight does not operate on this date")
	ErrMixedFlights       = errors.New("all tickets of a booking must reference the same flight")
	ErrInvalidTimeFormat  = errors.New("invalid time format, expected HH:mm")
	ErrInvalidInput       = errors.New("invalid input")
	ErrForbidden          = errors.New("forbidden")
)

// SeatError reports seat labels rejected for a flight and day. Kind is either
// ErrInvalidSeats or ErrSeatsAlreadyBooked.
type SeatError struct {
	Kind     error
	FlightID int64
	Day      string
	Seats    []string
}

func (e *SeatError) Error() string {
	msg := fmt.Sprintf("%v on flight %d", e.Kind, e.FlightID)
	if e.Day != "" {
		msg += " for " + e.Day
	}
	return msg + ": " + strings.Join(e.Seats, ", ")
}

func (e *SeatError) Unwrap() error { return e.Kind }

func NewSeatConflict(flightID int64, day string, seats []string) *SeatError {
	return &SeatError{Kind: ErrSeatsAlreadyBooked, FlightID: flightID, Day: day, Seats: seats}
}

func NewInvalidSeats(flightID int64, seats []string) *SeatError {
	return &SeatError{Kind: ErrInvalidSeats, FlightID: flightID, Seats: seats}
}

// SeatsOf extracts the offending seats from err, if it carries any.
func SeatsOf(err error) []string {
	var se *SeatError
	if errors.As(err, &se) {
		return se.Seats
	}
	return nil
}
