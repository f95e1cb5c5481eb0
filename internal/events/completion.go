package events

import "sort"

// HasTaken reports whether date is recorded in the event's completed doses.
func (event HealthEvent) HasTaken(date string) bool {
	for _, taken := range event.DatesTaken {
		if taken == date {
			return true
		}
	}
	return false
}

// ToggleDate returns a copy of event with date added to DatesTaken when
// absent and removed when present.
func ToggleDate(event HealthEvent, date string) HealthEvent {
	toggled := event.Clone()
	if event.HasTaken(date) {
		remaining := make([]string, 0, len(event.DatesTaken))
		for _, taken := range event.DatesTaken {
			if taken != date {
				remaining = append(remaining, taken)
			}
		}
		toggled.DatesTaken = remaining
		return toggled
	}
	toggled.DatesTaken = NormalizeDates(append(toggled.DatesTaken, date))
	return toggled
}

// NormalizeDates drops malformed and duplicate entries and sorts the rest.
func NormalizeDates(dates []string) []string {
	seen := make(map[string]struct{}, len(dates))
	normalized := make([]string, 0, len(dates))
	for _, date := range dates {
		if !IsValidDate(date) {
			continue
		}
		if _, ok := seen[date]; ok {
			continue
		}
		seen[date] = struct{}{}
		normalized = append(normalized, date)
	}
	sort.Strings(normalized)
	return normalized
}
