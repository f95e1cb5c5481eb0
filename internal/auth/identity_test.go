package auth

import (
	"context"
	"testing"
	"time"
)

func TestStaticIdentity(t *testing.T) {
	if userID, ok := StaticIdentity(" user-1 ").CurrentUserID(); !ok || userID != "user-1" {
		t.Fatalf("expected user-1, got %q ok=%v", userID, ok)
	}
	if _, ok := StaticIdentity("").CurrentUserID(); ok {
		t.Fatalf("expected empty identity to read as signed out")
	}
}

func TestSessionIdentityTracksTokenValidity(t *testing.T) {
	clockNow := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return clockNow }
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		Issuer:        testSessionIssuer,
		TokenTTL:      time.Hour,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	token, _, err := issuer.IssueSessionToken(context.Background(), testSessionUserID, "")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	identity, err := NewSessionIdentity(mustValidator(t, func() time.Time { return clockNow }), token)
	if err != nil {
		t.Fatalf("identity failed: %v", err)
	}
	if userID, ok := identity.CurrentUserID(); !ok || userID != testSessionUserID {
		t.Fatalf("expected %s, got %q ok=%v", testSessionUserID, userID, ok)
	}

	identity.SignOut()
	if _, ok := identity.CurrentUserID(); ok {
		t.Fatalf("expected signed out identity")
	}

	if _, err := NewSessionIdentity(mustValidator(t, nil), "not-a-token"); err == nil {
		t.Fatalf("expected invalid token to be rejected")
	}
}
