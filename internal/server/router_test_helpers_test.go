package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/carebook/internal/auth"
	"github.com/MarcoPoloResearchLab/carebook/internal/calendar"
	"github.com/MarcoPoloResearchLab/carebook/internal/events"
)

const (
	testSigningSecret = "secret"
	testIssuer        = "carebook"
	testUserID        = "user-1"
)

var testNow = time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)

type testServer struct {
	handler    http.Handler
	issuer     *auth.TokenIssuer
	calendar   *stubCalendar
	events     *stubLister
	summarizer *stubSummarizer
}

func newTestServer(t *testing.T, logger *zap.Logger) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	clock := func() time.Time { return testNow }

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		TokenTTL:      time.Hour,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("failed to create issuer: %v", err)
	}

	server := &testServer{
		issuer:     issuer,
		calendar:   newStubCalendar(),
		events:     &stubLister{},
		summarizer: &stubSummarizer{reply: "All done."},
	}
	handler, err := NewHTTPHandler(Dependencies{
		Sessions:   validator,
		UserID:     testUserID,
		Calendar:   server.calendar,
		Events:     server.events,
		Summarizer: server.summarizer,
		Clock:      clock,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("failed to create handler: %v", err)
	}
	server.handler = handler
	return server
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := s.issuer.IssueSessionToken(context.Background(), userID, "")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func (s *testServer) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, path, http.NoBody)
	} else {
		request = httptest.NewRequest(method, path, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

type stubCalendar struct {
	mu        sync.Mutex
	date      string
	all       []events.HealthEvent
	err       error
	added     []calendar.EventInput
	toggledOn []string
	deleted   []string
}

func newStubCalendar() *stubCalendar {
	return &stubCalendar{date: "20250110"}
}

func (s *stubCalendar) SetSelectedDate(date string) error {
	if !events.IsValidDate(date) {
		return events.ErrInvalidDate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.date = date
	return nil
}

func (s *stubCalendar) Projection() calendar.Projection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return calendar.Project(s.all, s.date)
}

func (s *stubCalendar) AddEvent(ctx context.Context, input calendar.EventInput) (events.HealthEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return events.HealthEvent{}, s.err
	}
	if input.Title == "" {
		return events.HealthEvent{}, calendar.ErrMissingTitle
	}
	s.added = append(s.added, input)
	return events.HealthEvent{ID: "new-id", UserID: testUserID, Title: input.Title, StartDate: s.date}, nil
}

func (s *stubCalendar) ToggleCompletion(ctx context.Context, eventID string) (events.HealthEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return events.HealthEvent{}, s.err
	}
	s.toggledOn = append(s.toggledOn, eventID+"@"+s.date)
	return events.HealthEvent{ID: eventID, DatesTaken: []string{s.date}}, nil
}

func (s *stubCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, eventID)
	return nil
}

type stubLister struct {
	list       []events.HealthEvent
	err        error
	lastUserID string
}

func (s *stubLister) ListAll(ctx context.Context, userID string) ([]events.HealthEvent, error) {
	s.lastUserID = userID
	if s.err != nil {
		return nil, s.err
	}
	return s.list, nil
}

type stubSummarizer struct {
	reply    string
	err      error
	lastDate string
}

func (s *stubSummarizer) Summarize(ctx context.Context, projection calendar.Projection) (string, error) {
	s.lastDate = projection.SelectedDate
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

var errAssistantDown = errors.New("assistant down")
