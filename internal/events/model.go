package events

import (
	"errors"
	"fmt"
	"strings"
)

// EventType enumerates the kinds of health events a user tracks.
type EventType string

const (
	// EventTypeMedication marks a dose that can be checked off per day.
	EventTypeMedication EventType = "MEDICATION"
	// EventTypeAppointment marks a visit or check-up.
	EventTypeAppointment EventType = "APPOINTMENT"
)

// Recurrence selects the visibility rule applied to an event.
type Recurrence string

const (
	// RecurrenceOneTime shows the event on its start date only.
	RecurrenceOneTime Recurrence = "ONE_TIME"
	// RecurrenceDaily shows the event on every date from its start date.
	RecurrenceDaily Recurrence = "DAILY"
	// RecurrenceWeekly shows the event on the start date's weekday.
	RecurrenceWeekly Recurrence = "WEEKLY"
	// RecurrenceMonthly shows the event on the start date's day of month.
	RecurrenceMonthly Recurrence = "MONTHLY"
)

// legacyRecurrenceOneTime is the spelling written by older clients.
const legacyRecurrenceOneTime = "ONETIME"

const maxIdentifierLength = 190

var (
	// ErrInvalidEventID indicates that an event identifier is empty or exceeds storage bounds.
	ErrInvalidEventID = errors.New("events: invalid event id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("events: invalid user id")
	// ErrInvalidEventType indicates an unknown event type string.
	ErrInvalidEventType = errors.New("events: invalid event type")
	// ErrInvalidRecurrence indicates an unknown recurrence string.
	ErrInvalidRecurrence = errors.New("events: invalid recurrence")
)

// EventID represents a validated event identifier.
type EventID string

// NewEventID validates raw input and returns an EventID.
func NewEventID(rawInput string) (EventID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidEventID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidEventID, maxIdentifierLength)
	}
	return EventID(trimmed), nil
}

// String returns the underlying string identifier.
func (id EventID) String() string {
	return string(id)
}

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// ParseEventType maps a stored or user supplied string onto an EventType.
func ParseEventType(rawInput string) (EventType, error) {
	switch strings.ToUpper(strings.TrimSpace(rawInput)) {
	case string(EventTypeMedication):
		return EventTypeMedication, nil
	case string(EventTypeAppointment):
		return EventTypeAppointment, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidEventType, rawInput)
	}
}

// ParseRecurrence maps a stored or user supplied string onto a Recurrence.
// The legacy ONETIME spelling collapses into RecurrenceOneTime.
func ParseRecurrence(rawInput string) (Recurrence, error) {
	switch strings.ToUpper(strings.TrimSpace(rawInput)) {
	case string(RecurrenceOneTime), legacyRecurrenceOneTime:
		return RecurrenceOneTime, nil
	case string(RecurrenceDaily):
		return RecurrenceDaily, nil
	case string(RecurrenceWeekly):
		return RecurrenceWeekly, nil
	case string(RecurrenceMonthly):
		return RecurrenceMonthly, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRecurrence, rawInput)
	}
}

// HealthEvent is the canonical medication or appointment record shared by the
// local cache and the remote store.
type HealthEvent struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Title      string     `json:"title"`
	Subtitle   string     `json:"subtitle"`
	Time       string     `json:"time"`
	StartDate  string     `json:"startDate"`
	Type       EventType  `json:"type"`
	Recurrence Recurrence `json:"recurrence"`
	DatesTaken []string   `json:"datesTaken"`
	IsSynced   bool       `json:"isSynced"`
}

// Clone returns a copy that shares no slices with the receiver.
func (event HealthEvent) Clone() HealthEvent {
	copied := event
	if event.DatesTaken != nil {
		copied.DatesTaken = append([]string(nil), event.DatesTaken...)
	}
	return copied
}

// Equal reports whether both events carry the same field values.
func (event HealthEvent) Equal(other HealthEvent) bool {
	if event.ID != other.ID ||
		event.UserID != other.UserID ||
		event.Title != other.Title ||
		event.Subtitle != other.Subtitle ||
		event.Time != other.Time ||
		event.StartDate != other.StartDate ||
		event.Type != other.Type ||
		event.Recurrence != other.Recurrence ||
		event.IsSynced != other.IsSynced {
		return false
	}
	if len(event.DatesTaken) != len(other.DatesTaken) {
		return false
	}
	for index := range event.DatesTaken {
		if event.DatesTaken[index] != other.DatesTaken[index] {
			return false
		}
	}
	return true
}

// SameContent compares every field except IsSynced.
func (event HealthEvent) SameContent(other HealthEvent) bool {
	left := event
	right := other
	left.IsSynced = false
	right.IsSynced = false
	return left.Equal(right)
}

// Validate checks the fields every stored event must carry.
func (event HealthEvent) Validate() error {
	if _, err := NewEventID(event.ID); err != nil {
		return err
	}
	if _, err := NewUserID(event.UserID); err != nil {
		return err
	}
	eventType, err := ParseEventType(string(event.Type))
	if err != nil {
		return err
	}
	if eventType != event.Type {
		return fmt.Errorf("%w: non-canonical %q", ErrInvalidEventType, event.Type)
	}
	recurrence, err := ParseRecurrence(string(event.Recurrence))
	if err != nil {
		return err
	}
	if recurrence != event.Recurrence {
		return fmt.Errorf("%w: non-canonical %q", ErrInvalidRecurrence, event.Recurrence)
	}
	return nil
}

// Canonicalize rewrites the type, recurrence and time of day of event into
// their stored spellings. A time that does not parse is kept as given.
func (event HealthEvent) Canonicalize() (HealthEvent, error) {
	eventType, err := ParseEventType(string(event.Type))
	if err != nil {
		return HealthEvent{}, err
	}
	recurrence, err := ParseRecurrence(string(event.Recurrence))
	if err != nil {
		return HealthEvent{}, err
	}
	event.Type = eventType
	event.Recurrence = recurrence
	event.Time = CanonicalTime(event.Time)
	return event, nil
}
