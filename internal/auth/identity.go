package auth

import (
	"strings"
	"sync"
)

// IdentityProvider exposes the signed-in user, if any.
type IdentityProvider interface {
	CurrentUserID() (string, bool)
}

// StaticIdentity is a fixed user id, used for single-user local installs.
type StaticIdentity string

// CurrentUserID returns the configured id; an empty id means signed out.
func (id StaticIdentity) CurrentUserID() (string, bool) {
	trimmed := strings.TrimSpace(string(id))
	return trimmed, trimmed != ""
}

// SessionIdentity resolves the user from a session token. The token is
// re-validated on every call so an expired session reads as signed out.
type SessionIdentity struct {
	validator *SessionValidator

	mu    sync.RWMutex
	token string
}

// NewSessionIdentity validates token once and returns an identity bound to it.
func NewSessionIdentity(validator *SessionValidator, token string) (*SessionIdentity, error) {
	if _, err := validator.ValidateToken(token); err != nil {
		return nil, err
	}
	return &SessionIdentity{validator: validator, token: token}, nil
}

// CurrentUserID returns the user of the bound token while it is valid.
func (s *SessionIdentity) CurrentUserID() (string, bool) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token == "" {
		return "", false
	}
	claims, err := s.validator.ValidateToken(token)
	if err != nil {
		return "", false
	}
	return claims.UserID, true
}

// SignOut drops the bound token.
func (s *SessionIdentity) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}
