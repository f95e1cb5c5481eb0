package eventsync

import (
	"errors"
	"fmt"
)

var (
	// ErrStopped is returned by mutations issued after Stop.
	ErrStopped = errors.New("eventsync: coordinator stopped")
	// ErrEventNotFound indicates a mutation of an id missing from the local store.
	ErrEventNotFound = errors.New("eventsync: event not found")
	// ErrNoIdentity indicates that no user is signed in.
	ErrNoIdentity = errors.New("eventsync: no authenticated user")
	// ErrForeignUser indicates an event owned by a different user than the session.
	ErrForeignUser = errors.New("eventsync: event belongs to another user")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("eventsync: coordinator already started")

	errMissingStore     = errors.New("local store is required")
	errMissingRemote    = errors.New("remote store is required")
	errMissingReminders = errors.New("reminder scheduler is required")
	errMissingIdentity  = errors.New("identity provider is required")
)

// SyncError carries an operation-scoped code for a coordinator failure.
type SyncError struct {
	code string
	err  error
}

func (e *SyncError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *SyncError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason code of the failure.
func (e *SyncError) Code() string {
	return e.code
}

const (
	opNew             = "eventsync.new"
	opStart           = "eventsync.start"
	opCreate          = "eventsync.create"
	opToggle          = "eventsync.toggle_completion"
	opDelete          = "eventsync.delete"
	opEnsureReminders = "eventsync.ensure_reminders"
	opPush            = "eventsync.push"
	opApplySnapshot   = "eventsync.apply_snapshot"
	opRemoteDelete    = "eventsync.remote_delete"
	opResubscribe     = "eventsync.resubscribe"
	opLock            = "eventsync.lock"
)

const (
	reasonMissingDependency = "missing_dependency"
	reasonNoIdentity        = "no_identity"
	reasonInvalidEvent      = "invalid_event"
	reasonInvalidDate       = "invalid_date"
	reasonForeignUser       = "foreign_user"
	reasonNotFound          = "not_found"
	reasonStopped           = "stopped"
	reasonAlreadyStarted    = "already_started"
	reasonLocalRead         = "local_read_failed"
	reasonLocalWrite        = "local_write_failed"
	reasonSubscribe         = "subscribe_failed"
	reasonRemoteWrite       = "remote_write_failed"
	reasonDecode            = "decode_failed"
	reasonReminder          = "reminder_failed"
	reasonUnlock            = "unlock_failed"
)

func newSyncError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &SyncError{code: code, err: cause}
}
