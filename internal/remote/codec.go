package remote

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/carebook/internal/events"
)

// Defaults applied to missing or malformed document fields.
const (
	DefaultEventType  = events.EventTypeMedication
	DefaultRecurrence = events.RecurrenceDaily
)

// DecodeDocument maps a remote document onto a HealthEvent marked synced.
// Missing or malformed fields fall back to defaults: empty text, MEDICATION,
// DAILY and no completed dates. A missing or malformed start date is kept as
// is so the event fails closed in visibility checks. Only a document without
// an id or owner is rejected.
func DecodeDocument(document Document) (events.HealthEvent, error) {
	id := strings.TrimSpace(document.ID)
	if id == "" {
		id = strings.TrimSpace(stringField(document.Fields, FieldID))
	}
	if _, err := events.NewEventID(id); err != nil {
		return events.HealthEvent{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	userID := strings.TrimSpace(document.UserID)
	if userID == "" {
		userID = strings.TrimSpace(stringField(document.Fields, FieldUserID))
	}
	if _, err := events.NewUserID(userID); err != nil {
		return events.HealthEvent{}, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, id, err)
	}

	eventType, err := events.ParseEventType(stringField(document.Fields, FieldType))
	if err != nil {
		eventType = DefaultEventType
	}
	recurrence, err := events.ParseRecurrence(stringField(document.Fields, FieldRecurrence))
	if err != nil {
		recurrence = DefaultRecurrence
	}

	return events.HealthEvent{
		ID:         id,
		UserID:     userID,
		Title:      stringField(document.Fields, FieldTitle),
		Subtitle:   stringField(document.Fields, FieldSubtitle),
		Time:       events.CanonicalTime(stringField(document.Fields, FieldTime)),
		StartDate:  strings.TrimSpace(stringField(document.Fields, FieldStartDate)),
		Type:       eventType,
		Recurrence: recurrence,
		DatesTaken: events.NormalizeDates(stringsField(document.Fields, FieldDatesTaken)),
		IsSynced:   true,
	}, nil
}

// EncodeEvent renders event as a remote document. The synced flag is local
// bookkeeping and is not stored remotely.
func EncodeEvent(event events.HealthEvent, updatedAt time.Time) Document {
	dates := events.NormalizeDates(event.DatesTaken)
	return Document{
		ID:     event.ID,
		UserID: event.UserID,
		Fields: map[string]any{
			FieldID:         event.ID,
			FieldUserID:     event.UserID,
			FieldTitle:      event.Title,
			FieldSubtitle:   event.Subtitle,
			FieldTime:       event.Time,
			FieldStartDate:  event.StartDate,
			FieldType:       string(event.Type),
			FieldRecurrence: string(event.Recurrence),
			FieldDatesTaken: dates,
		},
		UpdatedAt: updatedAt.UTC(),
	}
}

func stringField(fields map[string]any, key string) string {
	value, _ := fields[key].(string)
	return value
}

func stringsField(fields map[string]any, key string) []string {
	switch typed := fields[key].(type) {
	case []string:
		return append([]string(nil), typed...)
	case []any:
		values := make([]string, 0, len(typed))
		for _, item := range typed {
			if text, ok := item.(string); ok {
				values = append(values, text)
			}
		}
		return values
	default:
		return nil
	}
}
