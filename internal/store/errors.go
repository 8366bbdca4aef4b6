package store

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSession is returned when a session id was never issued or has been reaped.
	ErrUnknownSession = errors.New("unknown session")
	// ErrNotFound is returned when no blob matches the requested key.
	ErrNotFound = errors.New("blob not found")
	// ErrLeaseExpired is returned when a lease token is expired, completed or unknown.
	ErrLeaseExpired = errors.New("lease expired")
	// ErrSessionBusy is returned when a session still holds active leases after draining.
	ErrSessionBusy = errors.New("session busy")
	// ErrCollision signals that a freshly allocated identifier already exists.
	// It is a data-integrity failure and must not be retried silently.
	ErrCollision = errors.New("identifier collision")
)

// StorageError wraps an underlying persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("storage failure: %s", e.Op)
	}
	return fmt.Sprintf("storage failure: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// storageErr wraps err unless it already belongs to the domain taxonomy.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	var existing *StorageError
	if errors.As(err, &existing) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrUnknownSession) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrLeaseExpired) ||
		errors.Is(err, ErrSessionBusy) ||
		errors.Is(err, ErrCollision)
}

// IsStorageFailure reports whether err wraps a persistence failure.
func IsStorageFailure(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr)
}
