package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes the server puts in ErrorResponse.Code.
const (
	CodeNotFound          = "not_found"
	CodeLeaseExpired      = "lease_expired"
	CodeSessionBusy       = "session_busy"
	CodeResourceExhausted = "resource_exhausted"
	CodeUnavailable       = "unavailable"
)

// APIError is the decoded error envelope of a failed request.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
}

func (e *APIError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Code != "" && e.Message != "":
		return e.Code + ": " + e.Message
	case e.Message != "":
		return e.Message
	default:
		return fmt.Sprintf("jobq api: status %d", e.Status)
	}
}

// Retryable reports whether the same request may succeed later without
// changes: a busy session, a rate limit, or an aborted drain.
func (e *APIError) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Code {
	case CodeSessionBusy, CodeResourceExhausted, CodeUnavailable:
		return true
	}
	return e.Status == http.StatusTooManyRequests
}

func hasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// IsNotFound reports a session that is unknown or already reaped.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsLeaseExpired reports a renew or complete against a lease that is no
// longer held.
func IsLeaseExpired(err error) bool { return hasCode(err, CodeLeaseExpired) }

// IsSessionBusy reports a reap refused because leases were still active.
func IsSessionBusy(err error) bool { return hasCode(err, CodeSessionBusy) }

// IsRateLimited reports a submit rejected by the per-client limit.
func IsRateLimited(err error) bool { return hasCode(err, CodeResourceExhausted) }

// IsRetryable reports whether err is an APIError worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Retryable()
}
