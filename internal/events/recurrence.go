package events

import "fmt"

// IsVisible reports whether event has an occurrence on targetDate (yyyyMMdd).
// Unparseable dates fail closed. An unknown recurrence value panics.
//
// MONTHLY anchors on days 29-31 clamp to the last day of shorter months, so an
// event starting on January 31 is visible on February 28 (29 in leap years)
// and April 30.
func IsVisible(event HealthEvent, targetDate string) bool {
	start, err := ParseDate(event.StartDate)
	if err != nil {
		return false
	}
	target, err := ParseDate(targetDate)
	if err != nil {
		return false
	}

	sameDay := targetDate == event.StartDate
	if !sameDay && target.Before(start) {
		return false
	}

	switch event.Recurrence {
	case RecurrenceOneTime:
		return sameDay
	case RecurrenceDaily:
		return true
	case RecurrenceWeekly:
		return target.Weekday() == start.Weekday()
	case RecurrenceMonthly:
		anchorDay := start.Day()
		if lastDay := daysInMonth(target.Year(), target.Month()); anchorDay > lastDay {
			anchorDay = lastDay
		}
		return target.Day() == anchorDay
	default:
		panic(fmt.Sprintf("events: unknown recurrence %q", event.Recurrence))
	}
}

// FilterVisible keeps the events visible on targetDate, preserving order.
func FilterVisible(all []HealthEvent, targetDate string) []HealthEvent {
	visible := make([]HealthEvent, 0, len(all))
	for _, event := range all {
		if IsVisible(event, targetDate) {
			visible = append(visible, event)
		}
	}
	return visible
}
