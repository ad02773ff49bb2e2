package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a wall-clock time of day, stored as minutes since midnight.
type ClockTime int

// ParseClockTime parses "HH:MM" (also "H:MM" and "HH:MM:SS"; seconds are dropped).
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	return ClockTime(h*60 + m), nil
}

// MustClockTime is ParseClockTime for literals; it panics on bad input.
func MustClockTime(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hour returns the hour component.
func (c ClockTime) Hour() int { return int(c) / 60 }

// Minute returns the minute component.
func (c ClockTime) Minute() int { return int(c) % 60 }

// At composes the instant this clock time falls on for the given day,
// in the day's location.
func (c ClockTime) At(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), 0, 0, day.Location())
}

// String formats as "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// MarshalText implements encoding.TextMarshaler.
func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ClockTime) UnmarshalText(text []byte) error {
	parsed, err := ParseClockTime(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Lesson is one scheduled period of a school day as delivered by the
// timetable provider. Free periods are simply absent.
type Lesson struct {
	Period    int       `json:"period" yaml:"period"`
	ShortName string    `json:"short_name" yaml:"subject"`
	Start     ClockTime `json:"start" yaml:"start"`
	End       ClockTime `json:"end" yaml:"end"`
	Room      string    `json:"room" yaml:"room"`
	Teacher   string    `json:"teacher" yaml:"teacher"`
}

// EndAt returns the instant the lesson ends on day.
func (l Lesson) EndAt(day time.Time) time.Time {
	return l.End.At(day)
}

// StartAt returns the instant the lesson starts on day.
func (l Lesson) StartAt(day time.Time) time.Time {
	return l.Start.At(day)
}

// DayOf truncates t to midnight in its own location.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DateIn returns midnight in loc of the calendar date t carries. Used when a
// stored day comes back with a fixed offset instead of the configured zone.
func DateIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// NextDay returns midnight of the calendar day after day. Calendar
// arithmetic keeps DST days intact.
func NextDay(day time.Time) time.Time {
	return DayOf(day).AddDate(0, 0, 1)
}
