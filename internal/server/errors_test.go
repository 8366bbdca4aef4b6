package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"jobq/internal/api"
	"jobq/internal/store"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		errCode int
	}{
		{"unknown session", fmt.Errorf("lease: %w", store.ErrUnknownSession), http.StatusNotFound, api.CodeNotFound, ErrCodeSessionNotFound},
		{"stale lease", store.ErrLeaseExpired, http.StatusConflict, api.CodeLeaseExpired, ErrCodeLeaseExpired},
		{"busy session", store.ErrSessionBusy, http.StatusServiceUnavailable, api.CodeSessionBusy, ErrCodeSessionBusy},
		{"caller left during drain", context.Canceled, http.StatusServiceUnavailable, api.CodeUnavailable, ErrCodeInternal},
		{"already mapped", badRequestCode(errors.New("bad"), ErrCodeInvalidQuery), http.StatusBadRequest, "invalid_argument", ErrCodeInvalidQuery},
		{"anything else", errors.New("boom"), http.StatusInternalServerError, "internal", ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			if got.status != tt.status || got.code != tt.code || got.errCode != tt.errCode {
				t.Fatalf("expected %d/%s/%d, got %d/%s/%d", tt.status, tt.code, tt.errCode, got.status, got.code, got.errCode)
			}
		})
	}
}

func TestFailMasksInternalErrors(t *testing.T) {
	srv := New(Options{})
	req := httptest.NewRequest(http.MethodGet, "/v1/info", nil)

	w := httptest.NewRecorder()
	srv.fail(w, req, errors.New("disk on fire"))
	resp := decodeBody[api.ErrorResponse](t, w)
	if w.Code != http.StatusInternalServerError || resp.Error != "internal error" {
		t.Fatalf("expected masked 500, got %d %+v", w.Code, resp)
	}

	w = httptest.NewRecorder()
	srv.fail(w, req, store.ErrSessionBusy)
	resp = decodeBody[api.ErrorResponse](t, w)
	if w.Code != http.StatusServiceUnavailable || resp.Error == "internal error" {
		t.Fatalf("expected busy session detail to be shown, got %d %+v", w.Code, resp)
	}
}
