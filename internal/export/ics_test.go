package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/MarcoPoloResearchLab/carebook/internal/events"
)

func TestWriteICSRoundTripsThroughParser(t *testing.T) {
	list := []events.HealthEvent{
		{
			ID:         "med-1",
			UserID:     "user-1",
			Title:      "Metformin",
			Subtitle:   "500 mg",
			Time:       "08:00 AM",
			StartDate:  "20250131",
			Type:       events.EventTypeMedication,
			Recurrence: events.RecurrenceMonthly,
			DatesTaken: []string{"20250131"},
		},
		{
			ID:         "appt-1",
			UserID:     "user-1",
			Title:      "Cardiology",
			Time:       "02:30 PM",
			StartDate:  "20250210",
			Type:       events.EventTypeAppointment,
			Recurrence: events.RecurrenceOneTime,
		},
		{
			ID:         "broken",
			UserID:     "user-1",
			Title:      "No time",
			Time:       "later",
			StartDate:  "20250101",
			Type:       events.EventTypeMedication,
			Recurrence: events.RecurrenceDaily,
		},
	}

	var buffer bytes.Buffer
	result, err := WriteICS(&buffer, list, Options{Now: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if result.Written != 2 || len(result.Skipped) != 1 || result.Skipped[0] != "broken" {
		t.Fatalf("unexpected result %#v", result)
	}

	calendar, err := ical.ParseCalendar(strings.NewReader(buffer.String()))
	if err != nil {
		t.Fatalf("failed to parse exported calendar: %v", err)
	}
	parsed := calendar.Events()
	if len(parsed) != 2 {
		t.Fatalf("expected 2 events, got %d", len(parsed))
	}

	testCases := []struct {
		uid      string
		summary  string
		start    string
		end      string
		rrule    string
		category string
		hasTaken bool
	}{
		{uid: "med-1", summary: "Metformin", start: "20250131T080000", end: "20250131T081500", rrule: "FREQ=MONTHLY;BYMONTHDAY=28,29,30,31;BYSETPOS=-1", category: "MEDICATION", hasTaken: true},
		{uid: "appt-1", summary: "Cardiology", start: "20250210T143000", end: "20250210T153000", category: "APPOINTMENT"},
	}
	for index, testCase := range testCases {
		t.Run(testCase.uid, func(t *testing.T) {
			vevent := parsed[index]
			if got := propertyValue(vevent, ical.ComponentPropertyUniqueId); got != testCase.uid {
				t.Fatalf("expected uid %s, got %s", testCase.uid, got)
			}
			if got := propertyValue(vevent, ical.ComponentPropertySummary); got != testCase.summary {
				t.Fatalf("expected summary %s, got %s", testCase.summary, got)
			}
			if got := propertyValue(vevent, ical.ComponentPropertyDtStart); got != testCase.start {
				t.Fatalf("expected start %s, got %s", testCase.start, got)
			}
			if got := propertyValue(vevent, ical.ComponentPropertyDtEnd); got != testCase.end {
				t.Fatalf("expected end %s, got %s", testCase.end, got)
			}
			if got := propertyValue(vevent, ical.ComponentPropertyRrule); got != testCase.rrule {
				t.Fatalf("expected rrule %q, got %q", testCase.rrule, got)
			}
			if got := propertyValue(vevent, ical.ComponentPropertyCategories); got != testCase.category {
				t.Fatalf("expected category %s, got %s", testCase.category, got)
			}
			taken := propertyValue(vevent, ical.ComponentProperty(takenProperty))
			if (taken != "") != testCase.hasTaken {
				t.Fatalf("unexpected taken property %q", taken)
			}
		})
	}
}

func propertyValue(vevent *ical.VEvent, property ical.ComponentProperty) string {
	if prop := vevent.GetProperty(property); prop != nil {
		return prop.Value
	}
	return ""
}
