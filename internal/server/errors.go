package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"jobq/internal/api"
	"jobq/internal/store"
)

// apiError is a failure already mapped onto the response envelope: an HTTP
// status, a string code and a numeric error code.
type apiError struct {
	status  int
	code    string
	errCode int
	err     error
}

func (e apiError) Error() string {
	if e.err == nil {
		return http.StatusText(e.status)
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

// public reports whether the message may be shown to the client. Internal
// failures are logged and answered with a generic message.
func (e apiError) public() bool {
	switch e.status {
	case http.StatusServiceUnavailable, http.StatusNotImplemented:
		return true
	}
	return e.status < 500
}

func badRequestCode(err error, code int) error {
	return apiError{status: http.StatusBadRequest, code: "invalid_argument", errCode: code, err: err}
}

func notImplemented(err error) error {
	return apiError{status: http.StatusNotImplemented, code: "not_implemented", errCode: ErrCodeNotImplemented, err: err}
}

func rateLimited(err error) error {
	return apiError{status: http.StatusTooManyRequests, code: api.CodeResourceExhausted, errCode: ErrCodeResourceExhausted, err: err}
}

// queueErrorClasses maps queue outcomes onto the envelope. The first match
// wins.
var queueErrorClasses = []struct {
	target  error
	status  int
	code    string
	errCode int
}{
	{store.ErrUnknownSession, http.StatusNotFound, api.CodeNotFound, ErrCodeSessionNotFound},
	{store.ErrNotFound, http.StatusNotFound, api.CodeNotFound, ErrCodeBlobNotFound},
	{store.ErrLeaseExpired, http.StatusConflict, api.CodeLeaseExpired, ErrCodeLeaseExpired},
	{store.ErrSessionBusy, http.StatusServiceUnavailable, api.CodeSessionBusy, ErrCodeSessionBusy},
	{store.ErrCollision, http.StatusInternalServerError, "internal", ErrCodeCollision},
	// A reap abandoned because the caller left, or a drain cut short.
	{context.Canceled, http.StatusServiceUnavailable, api.CodeUnavailable, ErrCodeInternal},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, api.CodeUnavailable, ErrCodeInternal},
}

func classifyError(err error) apiError {
	var mapped apiError
	if errors.As(err, &mapped) && mapped.status != 0 {
		return mapped
	}
	for _, class := range queueErrorClasses {
		if errors.Is(err, class.target) {
			return apiError{status: class.status, code: class.code, errCode: class.errCode, err: err}
		}
	}
	if store.IsStorageFailure(err) {
		return apiError{status: http.StatusInternalServerError, code: "internal", errCode: ErrCodeStoreFailure, err: err}
	}
	return apiError{status: http.StatusInternalServerError, code: "internal", errCode: ErrCodeInternal, err: err}
}

// fail writes err as the JSON error envelope and logs it at a level that
// matches who is at fault.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	e := classifyError(err)
	fields := []any{
		"status", e.status, "code", e.code, "error_code", e.errCode, "error", e.err,
		"method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr,
	}

	message := e.Error()
	switch {
	case !e.public():
		s.log().Error("request failed", fields...)
		message = "internal error"
	case e.status == http.StatusTooManyRequests || e.status == http.StatusServiceUnavailable:
		s.log().Warn("request rejected", fields...)
	default:
		s.log().Debug("request rejected", fields...)
	}

	s.writeJSON(w, e.status, api.ErrorResponse{Error: message, Code: e.code, ErrorCode: e.errCode})
}

// decodeError turns a request body decoding failure into a 400.
func decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return badRequestCode(fmt.Errorf("invalid JSON payload"), ErrCodeInvalidJSON)
	default:
		return badRequestCode(err, ErrCodeInvalidJSON)
	}
}
