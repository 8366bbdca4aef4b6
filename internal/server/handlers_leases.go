package server

import (
	"net/http"

	"jobq/internal/api"
)

func (s *Server) handleLease(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.pathSessionID(w, r)
	if !ok {
		return
	}

	lease, err := s.queue.Lease(r.Context(), sessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if lease == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.writeJSON(w, http.StatusOK, api.LeaseResponse{Blob: lease.Blob, Token: lease.Token, ExpiresAt: lease.ExpiresAt})
}

func (s *Server) handleRenew(w http.ResponseWriter, r *http.Request) {
	var req api.RenewRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if err := requireLeaseToken(req.Token); err != nil {
		s.fail(w, r, err)
		return
	}

	expiresAt, renewed, err := s.queue.Renew(r.Context(), req.Token)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := api.RenewResponse{Renewed: renewed}
	if renewed {
		resp.ExpiresAt = &expiresAt
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req api.CompleteRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if err := requireLeaseToken(req.Token); err != nil {
		s.fail(w, r, err)
		return
	}

	result, err := s.queue.Complete(r.Context(), req.Token, req.Result)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.CompleteResponse{Result: result})
}
