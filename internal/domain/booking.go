package domain

import (
	"sort"
	"time"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

type Booking struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Email           string        `json:"email"`
	TotalPriceCents int64         `json:"total_price_cents"`
	BookingDate     time.Time     `json:"booking_date"`
	NumberOfTickets int           `json:"number_of_tickets"`
	Status          BookingStatus `json:"booking_status"`
	Tickets         []Ticket      `json:"tickets"`
	CancelledAt     *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Active reports whether the booking still holds its seats.
func (b *Booking) Active() bool {
	return b.Status != BookingStatusCancelled
}

// SeatLabels returns the seats of the booking in ticket order.
func (b *Booking) SeatLabels() []string {
	seats := make([]string, 0, len(b.Tickets))
	for _, t := range b.Tickets {
		seats = append(seats, t.SeatLabel)
	}
	return seats
}

// SeatClaim is one (flight, calendar day, seat) tuple held by a booking.
type SeatClaim struct {
	FlightID  int64
	Day       string
	SeatLabel string
	TicketID  string
}

// Claims lists the seat tuples the booking holds, ordered by day then seat so that
// callers locking per (flight, day) always acquire in the same order.
func (b *Booking) Claims(loc *time.Location) []SeatClaim {
	claims := make([]SeatClaim, 0, len(b.Tickets))
	for _, t := range b.Tickets {
		claims = append(claims, SeatClaim{
			FlightID:  t.FlightID,
			Day:       DayKey(t.DepartureDate, loc),
			SeatLabel: t.SeatLabel,
			TicketID:  t.ID,
		})
	}
	sort.Slice(claims, func(i, j int) bool {
		if claims[i].FlightID != claims[j].FlightID {
			return claims[i].FlightID < claims[j].FlightID
		}
		if claims[i].Day != claims[j].Day {
			return claims[i].Day < claims[j].Day
		}
		return claims[i].SeatLabel < claims[j].SeatLabel
	})
	return claims
}

// CheckIn is the passenger document record attached to a ticket. It starts empty
// and is filled at most once.
type CheckIn struct {
	PassportNumber string     `json:"passport_number,omitempty"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	Nationality    string     `json:"nationality,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	CheckedIn      bool       `json:"is_checked_in"`
	CheckedInAt    *time.Time `json:"check_in_time,omitempty"`
}

type Ticket struct {
	ID            string    `json:"id"`
	BookingID     string    `json:"booking_id"`
	FlightID      int64     `json:"flight_id"`
	DepartureDate time.Time `json:"departure_date"`
	SeatLabel     string    `json:"seat_number"`
	PassengerName string    `json:"passenger_name"`
	Gender        string    `json:"gender"`
	PriceCents    int64     `json:"price_cents"`
	CheckIn       CheckIn   `json:"check_in"`
}
