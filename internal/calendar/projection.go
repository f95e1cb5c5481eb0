// Package calendar derives the date-filtered event projection a UI renders and
// owns the selected-date cursor.
package calendar

import (
	"github.com/MarcoPoloResearchLab/carebook/internal/events"
)

// MedicationGroups partitions the visible medications of a date.
type MedicationGroups struct {
	Pending   []events.HealthEvent `json:"pending"`
	Completed []events.HealthEvent `json:"completed"`
}

// Projection is what the calendar shows for SelectedDate.
type Projection struct {
	SelectedDate string               `json:"selectedDate"`
	Visible      []events.HealthEvent `json:"visible"`
	Medications  MedicationGroups     `json:"medications"`
	Appointments []events.HealthEvent `json:"appointments"`
	LastError    string               `json:"lastError,omitempty"`
}

// Project filters all down to the events visible on date and partitions the
// medications by whether date is recorded as taken. It has no side effects.
func Project(all []events.HealthEvent, date string) Projection {
	projection := Projection{
		SelectedDate: date,
		Visible:      []events.HealthEvent{},
		Medications: MedicationGroups{
			Pending:   []events.HealthEvent{},
			Completed: []events.HealthEvent{},
		},
		Appointments: []events.HealthEvent{},
	}
	for _, event := range events.FilterVisible(all, date) {
		projection.Visible = append(projection.Visible, event)
		switch event.Type {
		case events.EventTypeAppointment:
			projection.Appointments = append(projection.Appointments, event)
		default:
			if event.HasTaken(date) {
				projection.Medications.Completed = append(projection.Medications.Completed, event)
			} else {
				projection.Medications.Pending = append(projection.Medications.Pending, event)
			}
		}
	}
	return projection
}
