package store

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable marks failures of the local persistence layer. Callers
	// treat it as non-fatal and retry on their next mutation.
	ErrStorageUnavailable = errors.New("store: local storage unavailable")

	errMissingDatabase = errors.New("database handle is required")
)

// StoreError carries an operation-scoped code for a local storage failure.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

// Is matches ErrStorageUnavailable so callers need not know the concrete type.
func (e *StoreError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

// Code returns the operation.reason code of the failure.
func (e *StoreError) Code() string {
	return e.code
}

const (
	opStoreNew        = "store.new"
	opInsertOrReplace = "store.insert_or_replace"
	opDelete          = "store.delete"
	opGetByID         = "store.get_by_id"
	opListAll         = "store.list_all"
	opWatch           = "store.watch"
)

func newStoreError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &StoreError{code: code, err: cause}
}
