package domain

import (
	"encoding/json"
	"time"
)

type FlightStatus string

const (
	FlightStatusScheduled FlightStatus = "Scheduled"
	FlightStatusDelayed   FlightStatus = "Delayed"
	FlightStatusCancelled FlightStatus = "Cancelled"
	FlightStatusCompleted FlightStatus = "Completed"
)

func (s FlightStatus) Valid() bool {
	switch s {
	case FlightStatusScheduled, FlightStatusDelayed, FlightStatusCancelled, FlightStatusCompleted:
		return true
	}
	return false
}

// DefaultTotalSeats is the seat count of the standard 32 row, six abreast cabin.
const DefaultTotalSeats = 192

// OperatingPeriod is the inclusive range of calendar days on which a flight schedule recurs.
type OperatingPeriod struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// UnmarshalJSON accepts the dates as YYYY-MM-DD or RFC 3339.
func (p *OperatingPeriod) UnmarshalJSON(data []byte) error {
	var raw struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out OperatingPeriod
	for _, f := range []struct {
		src string
		dst *time.Time
	}{{raw.StartDate, &out.StartDate}, {raw.EndDate, &out.EndDate}} {
		if f.src == "" {
			continue
		}
		t, err := ParseDate(f.src, time.UTC)
		if err != nil {
			return err
		}
		*f.dst = t
	}
	*p = out
	return nil
}

// Covers reports whether the calendar day of t (in loc) lies inside the period.
func (p OperatingPeriod) Covers(t time.Time, loc *time.Location) bool {
	day := CalendarDay(t, loc)
	return !day.Before(CivilDay(p.StartDate, loc)) && !day.After(CivilDay(p.EndDate, loc))
}

// RouteSnapshot is the copy of a route embedded into a flight. Later edits of the
// canonical route do not reach it.
type RouteSnapshot struct {
	DepartureAirport string `json:"departure_airport"`
	ArrivalAirport   string `json:"arrival_airport"`
	Duration         string `json:"duration"`
}

type Flight struct {
	ID              int64           `json:"id"`
	FlightNumber    string          `json:"flight_number"`
	DepartureDay    string          `json:"departure_day"`
	DepartureTime   string          `json:"departure_time"`
	ArrivalTime     string          `json:"arrival_time"`
	OperatingPeriod OperatingPeriod `json:"operating_period"`
	Status          FlightStatus    `json:"status"`
	Route           *RouteSnapshot  `json:"route,omitempty"`
	TotalSeats      int             `json:"total_seats"`
	BasePriceCents  int64           `json:"base_price_cents"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Operates reports whether the flight can be booked for the given departure date.
func (f *Flight) Operates(date time.Time, loc *time.Location) bool {
	if f.Status == FlightStatusCancelled {
		return false
	}
	return f.OperatingPeriod.Covers(date, loc)
}

// SearchFields are the flight attributes accepted by a substring search.
var SearchFields = []string{
	"flight_number", "departure_day", "departure_time", "arrival_time", "status",
	"departure_airport", "arrival_airport",
}

// SearchValue returns the value of a searchable attribute. ok is false for fields
// outside SearchFields.
func (f *Flight) SearchValue(field string) (value string, ok bool) {
	switch field {
	case "flight_number":
		return f.FlightNumber, true
	case "departure_day":
		return f.DepartureDay, true
	case "departure_time":
		return f.DepartureTime, true
	case "arrival_time":
		return f.ArrivalTime, true
	case "status":
		return string(f.Status), true
	case "departure_airport":
		if f.Route == nil {
			return "", true
		}
		return f.Route.DepartureAirport, true
	case "arrival_airport":
		if f.Route == nil {
			return "", true
		}
		return f.Route.ArrivalAirport, true
	}
	return "", false
}
