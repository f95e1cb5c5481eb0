package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/carebook/internal/auth"
	"github.com/MarcoPoloResearchLab/carebook/internal/calendar"
	"github.com/MarcoPoloResearchLab/carebook/internal/database"
	"github.com/MarcoPoloResearchLab/carebook/internal/events"
	"github.com/MarcoPoloResearchLab/carebook/internal/eventsync"
	"github.com/MarcoPoloResearchLab/carebook/internal/reminders"
	"github.com/MarcoPoloResearchLab/carebook/internal/remote"
	"github.com/MarcoPoloResearchLab/carebook/internal/server"
	"github.com/MarcoPoloResearchLab/carebook/internal/store"
)

const (
	sessionSigningSecret = "integration-secret"
	sessionIssuer        = "carebook"
	sessionUserID        = "user-abc"
	selectedDate         = "20250115"
	jsonContentType      = "application/json"
	eventualWithin       = 2 * time.Second
)

type flowHarness struct {
	baseURL string
	token   string
	remote  *remote.MemoryStore
}

func TestCalendarAddToggleAndSyncFlow(testContext *testing.T) {
	harness := newFlowHarness(testContext)

	createBody, _ := json.Marshal(map[string]any{
		"title":     "Metformin",
		"subtitle":  "500mg",
		"time":      "08:00 AM",
		"startDate": "20250110",
	})
	createResp := harness.do(testContext, http.MethodPost, "/events", createBody)
	defer createResp.Body.Close()
	if createResp.StatusCode != http.StatusCreated {
		testContext.Fatalf("unexpected create status: %d", createResp.StatusCode)
	}
	var created events.HealthEvent
	if err := json.NewDecoder(createResp.Body).Decode(&created); err != nil {
		testContext.Fatalf("failed to decode created event: %v", err)
	}
	if created.ID == "" || created.UserID != sessionUserID || created.Recurrence != events.RecurrenceDaily {
		testContext.Fatalf("unexpected created event %#v", created)
	}

	toggleResp := harness.do(testContext, http.MethodPost, "/events/"+created.ID+"/completions/"+selectedDate, nil)
	toggleResp.Body.Close()
	if toggleResp.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected toggle status: %d", toggleResp.StatusCode)
	}

	waitFor(testContext, "medication listed as completed", func() bool {
		projection := harness.projection(testContext, selectedDate)
		return len(projection.Medications.Completed) == 1 && len(projection.Medications.Pending) == 0
	})
	if projection := harness.projection(testContext, "20250116"); len(projection.Medications.Pending) != 1 {
		testContext.Fatalf("expected pending medication on the next day, got %#v", projection.Medications)
	}

	waitFor(testContext, "remote copy carries the taken date", func() bool {
		documents, err := harness.remote.List(context.Background(), sessionUserID)
		if err != nil || len(documents) != 1 {
			return false
		}
		decoded, err := remote.DecodeDocument(documents[0])
		return err == nil && decoded.HasTaken(selectedDate)
	})

	exportResp := harness.do(testContext, http.MethodGet, "/calendar.ics", nil)
	defer exportResp.Body.Close()
	if exportResp.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected export status: %d", exportResp.StatusCode)
	}
	var exported bytes.Buffer
	if _, err := exported.ReadFrom(exportResp.Body); err != nil {
		testContext.Fatalf("failed to read export: %v", err)
	}
	if !strings.Contains(exported.String(), "SUMMARY:Metformin") {
		testContext.Fatalf("expected exported event, got %s", exported.String())
	}

	deleteResp := harness.do(testContext, http.MethodDelete, "/events/"+created.ID, nil)
	deleteResp.Body.Close()
	if deleteResp.StatusCode != http.StatusNoContent {
		testContext.Fatalf("unexpected delete status: %d", deleteResp.StatusCode)
	}
	waitFor(testContext, "remote copy removed", func() bool {
		documents, err := harness.remote.List(context.Background(), sessionUserID)
		return err == nil && len(documents) == 0
	})
}

func TestAddEventCanonicalizesLowercaseInput(testContext *testing.T) {
	harness := newFlowHarness(testContext)

	createBody, _ := json.Marshal(map[string]any{
		"title":      "Cardiology",
		"time":       "10:30 am",
		"startDate":  selectedDate,
		"type":       "appointment",
		"recurrence": "ONETIME",
	})
	createResp := harness.do(testContext, http.MethodPost, "/events", createBody)
	defer createResp.Body.Close()
	if createResp.StatusCode != http.StatusCreated {
		testContext.Fatalf("unexpected create status: %d", createResp.StatusCode)
	}
	var created events.HealthEvent
	if err := json.NewDecoder(createResp.Body).Decode(&created); err != nil {
		testContext.Fatalf("failed to decode created event: %v", err)
	}
	if created.Type != events.EventTypeAppointment || created.Recurrence != events.RecurrenceOneTime || created.Time != "10:30 AM" {
		testContext.Fatalf("expected canonical event, got %#v", created)
	}

	waitFor(testContext, "appointment listed", func() bool {
		projection := harness.projection(testContext, selectedDate)
		return len(projection.Appointments) == 1 && len(projection.Medications.Pending) == 0
	})
	if projection := harness.projection(testContext, "20250116"); len(projection.Visible) != 0 {
		testContext.Fatalf("expected one-time appointment hidden on the next day, got %#v", projection.Visible)
	}
}

func TestCalendarRejectsForeignSession(testContext *testing.T) {
	harness := newFlowHarness(testContext)
	issuer := mustTokenIssuer(testContext)
	foreignToken, _, err := issuer.IssueSessionToken(context.Background(), "someone-else", "")
	if err != nil {
		testContext.Fatalf("failed to issue token: %v", err)
	}
	harness.token = foreignToken

	resp := harness.do(testContext, http.MethodGet, "/calendar", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		testContext.Fatalf("expected forbidden, got %d", resp.StatusCode)
	}
}

func newFlowHarness(testContext *testing.T) *flowHarness {
	testContext.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	db, err := database.OpenSQLite("file:"+strings.ReplaceAll(testContext.Name(), "/", "_")+"?mode=memory&cache=shared", logger)
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		testContext.Fatalf("failed to access sql db: %v", err)
	}
	testContext.Cleanup(func() { _ = sqlDB.Close() })

	localStore, err := store.New(store.Config{Database: db, Logger: logger})
	if err != nil {
		testContext.Fatalf("failed to build store: %v", err)
	}
	remoteStore := remote.NewMemoryStore(time.Now)
	scheduler, err := reminders.NewTimerScheduler(reminders.TimerConfig{
		Notifier: reminders.LogNotifier{Logger: logger},
		Logger:   logger,
	})
	if err != nil {
		testContext.Fatalf("failed to build scheduler: %v", err)
	}
	testContext.Cleanup(scheduler.Stop)

	coordinator, err := eventsync.New(eventsync.Config{
		Store:     localStore,
		Remote:    remoteStore,
		Reminders: scheduler,
		Identity:  auth.StaticIdentity(sessionUserID),
		Logger:    logger,
	})
	if err != nil {
		testContext.Fatalf("failed to build coordinator: %v", err)
	}
	if err := coordinator.Start(context.Background()); err != nil {
		testContext.Fatalf("failed to start coordinator: %v", err)
	}
	testContext.Cleanup(coordinator.Stop)

	view, err := calendar.NewViewState(calendar.Config{
		Source:  localStore,
		Actions: coordinator,
		Logger:  logger,
	})
	if err != nil {
		testContext.Fatalf("failed to build view state: %v", err)
	}
	if err := view.Start(context.Background()); err != nil {
		testContext.Fatalf("failed to start view state: %v", err)
	}
	testContext.Cleanup(view.Stop)

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(sessionSigningSecret),
		Issuer:        sessionIssuer,
	})
	if err != nil {
		testContext.Fatalf("failed to construct session validator: %v", err)
	}
	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions: validator,
		UserID:   coordinator.UserID(),
		Calendar: view,
		Events:   localStore,
		Logger:   logger,
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	testContext.Cleanup(testServer.Close)

	token, _, err := mustTokenIssuer(testContext).IssueSessionToken(context.Background(), sessionUserID, "Integration")
	if err != nil {
		testContext.Fatalf("failed to issue token: %v", err)
	}
	return &flowHarness{baseURL: testServer.URL, token: token, remote: remoteStore}
}

func mustTokenIssuer(testContext *testing.T) *auth.TokenIssuer {
	testContext.Helper()
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(sessionSigningSecret),
		Issuer:        sessionIssuer,
		TokenTTL:      time.Hour,
	})
	if err != nil {
		testContext.Fatalf("failed to construct token issuer: %v", err)
	}
	return issuer
}

func (h *flowHarness) do(testContext *testing.T, method, path string, body []byte) *http.Response {
	testContext.Helper()
	request, err := http.NewRequest(method, h.baseURL+path, bytes.NewReader(body))
	if err != nil {
		testContext.Fatalf("failed to build request: %v", err)
	}
	request.Header.Set("Authorization", "Bearer "+h.token)
	if body != nil {
		request.Header.Set("Content-Type", jsonContentType)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		testContext.Fatalf("%s %s failed: %v", method, path, err)
	}
	return response
}

func (h *flowHarness) projection(testContext *testing.T, date string) calendar.Projection {
	testContext.Helper()
	response := h.do(testContext, http.MethodGet, "/calendar?date="+date, nil)
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected calendar status: %d", response.StatusCode)
	}
	var projection calendar.Projection
	if err := json.NewDecoder(response.Body).Decode(&projection); err != nil {
		testContext.Fatalf("failed to decode projection: %v", err)
	}
	return projection
}

func waitFor(testContext *testing.T, description string, condition func() bool) {
	testContext.Helper()
	deadline := time.Now().Add(eventualWithin)
	for !condition() {
		if time.Now().After(deadline) {
			testContext.Fatalf("timed out waiting for %s", description)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
