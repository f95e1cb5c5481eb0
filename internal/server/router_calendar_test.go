package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/carebook/internal/calendar"
	"github.com/MarcoPoloResearchLab/carebook/internal/events"
	"github.com/MarcoPoloResearchLab/carebook/internal/eventsync"
	"github.com/MarcoPoloResearchLab/carebook/internal/store"
)

func TestCalendarReturnsProjectionForRequestedDate(t *testing.T) {
	server := newTestServer(t, zap.NewNop())
	server.calendar.all = []events.HealthEvent{sampleMedication()}

	recorder := server.do(t, http.MethodGet, "/calendar?date=20250111", "", server.token(t, testUserID))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var projection calendar.Projection
	if err := json.Unmarshal(recorder.Body.Bytes(), &projection); err != nil {
		t.Fatalf("failed to decode projection: %v", err)
	}
	if projection.SelectedDate != "20250111" {
		t.Fatalf("unexpected date %s", projection.SelectedDate)
	}
	if len(projection.Medications.Completed) != 1 || projection.Medications.Completed[0].ID != "med-1" {
		t.Fatalf("expected med-1 completed on 20250111, got %#v", projection.Medications)
	}
}

func TestCalendarRejectsInvalidDate(t *testing.T) {
	server := newTestServer(t, zap.NewNop())
	recorder := server.do(t, http.MethodGet, "/calendar?date=2025-01-11", "", server.token(t, testUserID))
	if recorder.Code != http.StatusBadRequest || recorder.Body.String() != `{"error":"invalid_date"}` {
		t.Fatalf("unexpected response %d %s", recorder.Code, recorder.Body.String())
	}
}

func TestAddEventCreatesThroughCalendar(t *testing.T) {
	server := newTestServer(t, zap.NewNop())
	body := `{"title":"Aspirin","time":"09:00 PM","recurrence":"WEEKLY"}`

	recorder := server.do(t, http.MethodPost, "/events", body, server.token(t, testUserID))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if len(server.calendar.added) != 1 || server.calendar.added[0].Recurrence != events.RecurrenceWeekly {
		t.Fatalf("unexpected add calls %#v", server.calendar.added)
	}
	if !strings.Contains(recorder.Body.String(), `"id":"new-id"`) {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
}

func TestAddEventMapsErrors(t *testing.T) {
	testCases := []struct {
		name       string
		body       string
		failure    error
		wantStatus int
		wantBody   string
	}{
		{name: "malformed json", body: `{`, wantStatus: http.StatusBadRequest, wantBody: `{"error":"invalid_request"}`},
		{name: "missing title", body: `{}`, wantStatus: http.StatusBadRequest, wantBody: `{"error":"missing_title"}`},
		{name: "storage down", body: `{"title":"x"}`, failure: store.ErrStorageUnavailable, wantStatus: http.StatusServiceUnavailable, wantBody: `{"error":"storage_unavailable"}`},
		{name: "stopped", body: `{"title":"x"}`, failure: eventsync.ErrStopped, wantStatus: http.StatusServiceUnavailable, wantBody: `{"error":"sync_stopped"}`},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			server := newTestServer(t, zap.NewNop())
			server.calendar.err = testCase.failure
			recorder := server.do(t, http.MethodPost, "/events", testCase.body, server.token(t, testUserID))
			if recorder.Code != testCase.wantStatus || recorder.Body.String() != testCase.wantBody {
				t.Fatalf("unexpected response %d %s", recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestToggleCompletionMovesCursorToDate(t *testing.T) {
	server := newTestServer(t, zap.NewNop())
	recorder := server.do(t, http.MethodPost, "/events/med-1/completions/20250112", "", server.token(t, testUserID))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if len(server.calendar.toggledOn) != 1 || server.calendar.toggledOn[0] != "med-1@20250112" {
		t.Fatalf("unexpected toggles %#v", server.calendar.toggledOn)
	}
}

func TestToggleCompletionUnknownEventIsNotFound(t *testing.T) {
	server := newTestServer(t, zap.NewNop())
	server.calendar.err = eventsync.ErrEventNotFound
	recorder := server.do(t, http.MethodPost, "/events/missing/completions/20250112", "", server.token(t, testUserID))
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestDeleteEventReturnsNoContent(t *testing.T) {
	server := newTestServer(t, zap.NewNop())
	recorder := server.do(t, http.MethodDelete, "/events/med-1", "", server.token(t, testUserID))
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
	if len(server.calendar.deleted) != 1 || server.calendar.deleted[0] != "med-1" {
		t.Fatalf("unexpected deletes %#v", server.calendar.deleted)
	}
}

func TestCalendarExportServesICS(t *testing.T) {
	server := newTestServer(t, zap.NewNop())
	server.events.list = []events.HealthEvent{sampleMedication()}

	recorder := server.do(t, http.MethodGet, "/calendar.ics", "", server.token(t, testUserID))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if !strings.HasPrefix(recorder.Header().Get("Content-Type"), "text/calendar") {
		t.Fatalf("unexpected content type %q", recorder.Header().Get("Content-Type"))
	}
	if server.events.lastUserID != testUserID {
		t.Fatalf("expected events listed for the session user, got %q", server.events.lastUserID)
	}
	body := recorder.Body.String()
	for _, want := range []string{"BEGIN:VCALENDAR", "UID:med-1", "RRULE:FREQ=DAILY"} {
		if !strings.Contains(body, want) {
			t.Fatalf("calendar missing %q:\n%s", want, body)
		}
	}
}

func TestSummaryUsesRequestedDate(t *testing.T) {
	server := newTestServer(t, zap.NewNop())
	server.events.list = []events.HealthEvent{sampleMedication()}

	recorder := server.do(t, http.MethodGet, "/assistant/summary?date=20250115", "", server.token(t, testUserID))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if recorder.Body.String() != `{"date":"20250115","summary":"All done."}` {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
	if server.summarizer.lastDate != "20250115" {
		t.Fatalf("expected projection for requested date, got %s", server.summarizer.lastDate)
	}
}

func TestSummaryReportsAssistantFailure(t *testing.T) {
	server := newTestServer(t, zap.NewNop())
	server.summarizer.err = errAssistantDown
	recorder := server.do(t, http.MethodGet, "/assistant/summary", "", server.token(t, testUserID))
	if recorder.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", recorder.Code)
	}
}

func sampleMedication() events.HealthEvent {
	return events.HealthEvent{
		ID:         "med-1",
		UserID:     testUserID,
		Title:      "Metformin",
		Time:       "08:00 AM",
		StartDate:  "20250101",
		Type:       events.EventTypeMedication,
		Recurrence: events.RecurrenceDaily,
		DatesTaken: []string{"20250111"},
		IsSynced:   true,
	}
}
