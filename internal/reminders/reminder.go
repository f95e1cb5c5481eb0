// Package reminders schedules local alerts for health events and delivers them
// through a Notifier when they fire.
package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/carebook/internal/events"
	"github.com/MarcoPoloResearchLab/carebook/internal/occurrence"
)

const maxSkippedOccurrences = 400

// Payload is the content shown when a reminder fires.
type Payload struct {
	Title    string
	Subtitle string
	Type     events.EventType
}

// PayloadFor builds the reminder payload of event.
func PayloadFor(event events.HealthEvent) Payload {
	return Payload{Title: event.Title, Subtitle: event.Subtitle, Type: event.Type}
}

// Message renders the notification copy, which depends on the event type.
func (payload Payload) Message() string {
	var headline string
	switch payload.Type {
	case events.EventTypeAppointment:
		headline = fmt.Sprintf("Upcoming appointment: %s", payload.Title)
	default:
		headline = fmt.Sprintf("Time to take %s", payload.Title)
	}
	if payload.Subtitle == "" {
		return headline
	}
	return headline + "\n" + payload.Subtitle
}

// Scheduler is the local alarm facility. Scheduling an id that already has a
// pending reminder replaces it.
type Scheduler interface {
	Schedule(eventID string, fireAtMillis int64, payload Payload) error
	Cancel(eventID string) error
}

// Reminder is a fired alert handed to a Notifier.
type Reminder struct {
	EventID string
	FireAt  time.Time
	Payload Payload
}

// Notifier delivers fired reminders.
type Notifier interface {
	Notify(ctx context.Context, reminder Reminder) error
}

// FireTime returns the next occurrence of event after now that still needs an
// alert. Medication occurrences already marked taken are skipped.
func FireTime(event events.HealthEvent, now time.Time) (time.Time, bool, error) {
	cursor := now
	for attempt := 0; attempt < maxSkippedOccurrences; attempt++ {
		next, found, err := occurrence.Next(event, cursor)
		if err != nil || !found {
			return time.Time{}, false, err
		}
		if event.Type != events.EventTypeMedication || !event.HasTaken(events.FormatDate(next)) {
			return next, true, nil
		}
		cursor = next
	}
	return time.Time{}, false, nil
}
