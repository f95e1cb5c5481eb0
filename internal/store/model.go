package store

import (
	"github.com/MarcoPoloResearchLab/carebook/internal/events"
)

// EventRecord models the locally cached health event.
type EventRecord struct {
	EventID          string   `gorm:"column:event_id;primaryKey;size:190;not null"`
	UserID           string   `gorm:"column:user_id;size:190;not null;index:idx_events_user_seq,priority:1"`
	InsertSeq        int64    `gorm:"column:insert_seq;not null;index:idx_events_user_seq,priority:2"`
	Title            string   `gorm:"column:title;type:text;not null;default:''"`
	Subtitle         string   `gorm:"column:subtitle;type:text;not null;default:''"`
	TimeOfDay        string   `gorm:"column:time_of_day;size:16;not null;default:''"`
	StartDate        string   `gorm:"column:start_date;size:8;not null;default:''"`
	EventType        string   `gorm:"column:event_type;size:32;not null"`
	Recurrence       string   `gorm:"column:recurrence;size:32;not null"`
	DatesTaken       []string `gorm:"column:dates_taken;type:text;serializer:json"`
	IsSynced         bool     `gorm:"column:is_synced;not null;default:false"`
	UpdatedAtSeconds int64    `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (EventRecord) TableName() string {
	return "health_events"
}

func recordFromEvent(event events.HealthEvent) EventRecord {
	dates := event.DatesTaken
	if dates == nil {
		dates = []string{}
	}
	return EventRecord{
		EventID:    event.ID,
		UserID:     event.UserID,
		Title:      event.Title,
		Subtitle:   event.Subtitle,
		TimeOfDay:  event.Time,
		StartDate:  event.StartDate,
		EventType:  string(event.Type),
		Recurrence: string(event.Recurrence),
		DatesTaken: append([]string(nil), dates...),
		IsSynced:   event.IsSynced,
	}
}

func (record EventRecord) toEvent() events.HealthEvent {
	dates := record.DatesTaken
	if dates == nil {
		dates = []string{}
	}
	return events.HealthEvent{
		ID:         record.EventID,
		UserID:     record.UserID,
		Title:      record.Title,
		Subtitle:   record.Subtitle,
		Time:       record.TimeOfDay,
		StartDate:  record.StartDate,
		Type:       events.EventType(record.EventType),
		Recurrence: events.Recurrence(record.Recurrence),
		DatesTaken: append([]string{}, dates...),
		IsSynced:   record.IsSynced,
	}
}
