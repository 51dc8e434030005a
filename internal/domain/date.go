package domain

import (
	"fmt"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// CalendarDay returns midnight of the day containing t, in loc.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(location(loc))
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// CivilDay reinterprets the year, month and day of d, read in d's own location, as
// midnight in loc. Stored dates carry no zone of their own.
func CivilDay(d time.Time, loc *time.Location) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, location(loc))
}

// DayKey is the YYYY-MM-DD form of the calendar day containing t.
func DayKey(t time.Time, loc *time.Location) string {
	return CalendarDay(t, loc).Format(dayLayout)
}

// ParseDate accepts YYYY-MM-DD (interpreted in loc) or an RFC 3339 timestamp.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(dayLayout, s, location(loc)); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
}
