package server

import (
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MarcoPoloResearchLab/carebook/internal/auth"
)

func TestHealthzNeedsNoToken(t *testing.T) {
	server := newTestServer(t, zap.NewNop())
	recorder := server.do(t, http.MethodGet, "/healthz", "", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if recorder.Body.String() != `{"status":"ok"}` {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
}

func TestAuthorizeRequestRejectsMissingTokenAtInfoLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	server := newTestServer(t, zap.New(core))

	recorder := server.do(t, http.MethodGet, "/calendar", "", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.FilterMessage("token validation failed").All()
	if len(entries) != 1 || entries[0].Level != zapcore.InfoLevel {
		t.Fatalf("expected one info entry, got %#v", entries)
	}
}

func TestAuthorizeRequestLogsForgedTokenAtWarnLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	server := newTestServer(t, zap.New(core))

	forger, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("other-secret"),
		Issuer:        testIssuer,
		Clock:         func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("failed to create issuer: %v", err)
	}
	forged, _, err := forger.IssueSessionToken(t.Context(), testUserID, "")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	recorder := server.do(t, http.MethodGet, "/calendar", "", forged)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
	entries := logs.FilterMessage("token validation failed").All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected one warn entry, got %#v", entries)
	}
}

func TestAuthorizeRequestRejectsOtherUser(t *testing.T) {
	server := newTestServer(t, zap.NewNop())
	recorder := server.do(t, http.MethodGet, "/calendar", "", server.token(t, "user-2"))
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", recorder.Code)
	}
	if recorder.Body.String() != `{"error":"forbidden"}` {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
}

func TestNewHTTPHandlerRequiresDependencies(t *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); err != errMissingSessionValidator {
		t.Fatalf("expected errMissingSessionValidator, got %v", err)
	}
}
