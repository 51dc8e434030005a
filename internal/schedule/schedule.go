// Package schedule derives flight clock times from a departure time and a route duration.
// All values are HH:mm wall-clock strings; calendar dates are not tracked.
package schedule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Domenick1991/flightbooking/internal/domain"
)

// TurnaroundBuffer is the ground time between the outbound arrival and the return departure.
const TurnaroundBuffer = 45

const minutesPerDay = 24 * 60

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Leg is the schedule of an outbound flight and its generated return flight.
type Leg struct {
	OutboundArrival string
	ReturnDay       string
	ReturnDeparture string
	ReturnArrival   string
}

// ParseClock parses HH:mm into minutes. maxHours bounds the hour part; a negative
// value leaves it unbounded, which is what durations need.
func ParseClock(s string, maxHours int) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || parts[0] == "" || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidTimeFormat, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || (maxHours >= 0 && h > maxHours) {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidTimeFormat, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidTimeFormat, s)
	}
	return h*60 + m, nil
}

// ValidateTime checks a time of day.
func ValidateTime(s string) error {
	_, err := ParseClock(s, 23)
	return err
}

// ValidateDuration checks a flight duration.
func ValidateDuration(s string) error {
	_, err := ParseClock(s, -1)
	return err
}

func format(minutes int) string {
	minutes %= minutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ArrivalTime adds duration to departure on the 24h clock.
// "22:30" + "02:00" is "00:30"; the next-day rollover is not reported.
func ArrivalTime(departure, duration string) (string, error) {
	dep, err := ParseClock(departure, 23)
	if err != nil {
		return "", err
	}
	dur, err := ParseClock(duration, -1)
	if err != nil {
		return "", err
	}
	return format(dep + dur), nil
}

// ReturnLeg computes the outbound arrival and the return flight schedule for a flight
// leaving on day at departure. The return departs TurnaroundBuffer minutes after
// the outbound arrival; when its hour is lower than the outbound departure hour the
// return moves to the next weekday.
func ReturnLeg(day, departure, duration string) (Leg, error) {
	dep, err := ParseClock(departure, 23)
	if err != nil {
		return Leg{}, err
	}
	dur, err := ParseClock(duration, -1)
	if err != nil {
		return Leg{}, err
	}
	retDay, err := NormalizeDay(day)
	if err != nil {
		return Leg{}, err
	}

	arrival := (dep + dur) % minutesPerDay
	retDep := (arrival + TurnaroundBuffer) % minutesPerDay
	retArr := (retDep + dur) % minutesPerDay

	if retDep/60 < dep/60 {
		if retDay, err = NextDay(retDay); err != nil {
			return Leg{}, err
		}
	}

	return Leg{
		OutboundArrival: format(arrival),
		ReturnDay:       retDay,
		ReturnDeparture: format(retDep),
		ReturnArrival:   format(retArr),
	}, nil
}

// NextDay returns the weekday after day, Sunday wrapping to Monday.
func NextDay(day string) (string, error) {
	idx, err := weekdayIndex(day)
	if err != nil {
		return "", err
	}
	return weekdays[(idx+1)%len(weekdays)], nil
}

// NormalizeDay returns the canonical capitalised weekday name.
func NormalizeDay(day string) (string, error) {
	idx, err := weekdayIndex(day)
	if err != nil {
		return "", err
	}
	return weekdays[idx], nil
}

func weekdayIndex(day string) (int, error) {
	for i, d := range weekdays {
		if strings.EqualFold(d, strings.TrimSpace(day)) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", domain.ErrInvalidInput, day)
}
