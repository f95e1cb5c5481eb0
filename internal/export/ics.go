// Package export renders health events as an iCalendar feed.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/carebook/internal/events"
	"github.com/MarcoPoloResearchLab/carebook/internal/occurrence"
)

const (
	productID           = "-//carebook//health events//EN"
	floatingLayout      = "20060102T150405"
	medicationDuration  = 15 * time.Minute
	appointmentDuration = time.Hour
	takenProperty       = "X-CAREBOOK-TAKEN"
)

// Options tunes an export.
type Options struct {
	Now    time.Time
	Logger *zap.Logger
}

// Result reports what an export wrote.
type Result struct {
	Written int
	Skipped []string
}

// WriteICS writes one VEVENT per event. Times are floating local times so
// recurrences keep their wall-clock hour across DST changes. Events whose
// date or time cannot be parsed are skipped and listed in the result.
func WriteICS(w io.Writer, list []events.HealthEvent, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	calendar := ical.NewCalendar()
	calendar.SetMethod(ical.MethodPublish)
	calendar.SetProductId(productID)

	var result Result
	for _, event := range list {
		if err := addEvent(calendar, event, now); err != nil {
			logger.Warn("event skipped in export", zap.String("event_id", event.ID), zap.Error(err))
			result.Skipped = append(result.Skipped, event.ID)
			continue
		}
		result.Written++
	}

	if _, err := io.WriteString(w, calendar.Serialize()); err != nil {
		return result, fmt.Errorf("export: write calendar: %w", err)
	}
	return result, nil
}

func addEvent(calendar *ical.Calendar, event events.HealthEvent, now time.Time) error {
	start, err := occurrence.Start(event)
	if err != nil {
		return err
	}
	rule := ""
	if event.Recurrence != events.RecurrenceOneTime {
		rule, err = occurrence.RuleString(event.Recurrence, start.Day())
		if err != nil {
			return err
		}
	}

	duration := medicationDuration
	if event.Type == events.EventTypeAppointment {
		duration = appointmentDuration
	}

	vevent := calendar.AddEvent(event.ID)
	vevent.SetDtStampTime(now)
	vevent.SetProperty(ical.ComponentPropertyDtStart, start.Format(floatingLayout))
	vevent.SetProperty(ical.ComponentPropertyDtEnd, start.Add(duration).Format(floatingLayout))
	vevent.SetSummary(event.Title)
	if event.Subtitle != "" {
		vevent.SetDescription(event.Subtitle)
	}
	vevent.SetProperty(ical.ComponentPropertyCategories, string(event.Type))
	if rule != "" {
		vevent.AddProperty(ical.ComponentPropertyRrule, rule)
	}
	if len(event.DatesTaken) > 0 {
		vevent.SetProperty(ical.ComponentProperty(takenProperty), strings.Join(event.DatesTaken, ","))
	}
	return nil
}
