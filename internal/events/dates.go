package events

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the storage format of calendar dates (yyyyMMdd).
	DateLayout = "20060102"
	// TimeLayout is the storage format of times of day (hh:mm AM/PM).
	TimeLayout = "03:04 PM"
)

var (
	// ErrInvalidDate indicates a date string that is not yyyyMMdd.
	ErrInvalidDate = errors.New("events: invalid date")
	// ErrInvalidTime indicates a time string that is not hh:mm AM/PM.
	ErrInvalidTime = errors.New("events: invalid time of day")
)

// ParseDate parses a yyyyMMdd string as local midnight.
func ParseDate(value string) (time.Time, error) {
	if len(value) != len(DateLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	parsed, err := time.ParseInLocation(DateLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return parsed, nil
}

// FormatDate renders the calendar date of value in its own location.
func FormatDate(value time.Time) string {
	return value.Format(DateLayout)
}

// Today returns the current local date as yyyyMMdd.
func Today(clock func() time.Time) string {
	if clock == nil {
		clock = time.Now
	}
	return FormatDate(clock().In(time.Local))
}

// IsValidDate reports whether value is a parseable yyyyMMdd date.
func IsValidDate(value string) bool {
	_, err := ParseDate(value)
	return err == nil
}

// TimeOfDay is a parsed hh:mm AM/PM value.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an hh:mm AM/PM string.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) != len(TimeLayout) {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	parsed, err := time.Parse(TimeLayout, strings.ToUpper(trimmed))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

// CanonicalTime renders value as hh:mm AM/PM when it parses and returns it
// unchanged otherwise.
func CanonicalTime(value string) string {
	timeOfDay, err := ParseTimeOfDay(value)
	if err != nil {
		return value
	}
	return timeOfDay.String()
}

// On anchors the time of day to the calendar date of day, in day's location.
func (timeOfDay TimeOfDay) On(day time.Time) time.Time {
	year, month, date := day.Date()
	return time.Date(year, month, date, timeOfDay.Hour, timeOfDay.Minute, 0, 0, day.Location())
}

// String renders the time of day as hh:mm AM/PM.
func (timeOfDay TimeOfDay) String() string {
	return time.Date(2000, time.January, 1, timeOfDay.Hour, timeOfDay.Minute, 0, 0, time.UTC).Format(TimeLayout)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
