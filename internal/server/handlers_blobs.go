package server

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"jobq/internal/api"
	"jobq/internal/queue"
)

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.allowSubmit(w, r) {
		return
	}

	var req api.SubmitRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if err := validateSubmit(req.SessionID, req.Message, req.Author, s.maxMessageBytes); err != nil {
		s.fail(w, r, err)
		return
	}

	blob, err := s.queue.Submit(r.Context(), queue.SubmitRequest{
		SessionID: strings.TrimSpace(req.SessionID),
		Message:   req.Message,
		Author:    strings.TrimSpace(req.Author),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, api.SubmitResponse{SessionID: blob.SessionID, SequenceTime: blob.SequenceTime})
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.pathSessionID(w, r)
	if !ok {
		return
	}

	blobs, err := s.queue.ListPending(r.Context(), sessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.PendingResponse{SessionID: sessionID, Blobs: blobs})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.pathSessionID(w, r)
	if !ok {
		return
	}

	blobs, err := s.queue.Transcript(r.Context(), sessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	lines := make([]string, 0, len(blobs))
	for _, blob := range blobs {
		if blob.Author == "" {
			lines = append(lines, blob.Message)
			continue
		}
		lines = append(lines, blob.Author+": "+blob.Message)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if len(lines) > 0 {
		if _, err := fmt.Fprintln(w, strings.Join(lines, "\n")); err != nil {
			s.log().Error("write transcript", "session_id", sessionID, "error", err)
		}
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	jobs, err := s.queue.ListJobs(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := api.JobsResponse{Sessions: make([]api.SessionJobs, 0, len(jobs))}
	for sessionID, blobs := range jobs {
		resp.Sessions = append(resp.Sessions, api.SessionJobs{SessionID: sessionID, Blobs: blobs})
		resp.Total += len(blobs)
	}
	sort.Slice(resp.Sessions, func(i, j int) bool {
		return resp.Sessions[i].SessionID < resp.Sessions[j].SessionID
	})

	s.writeJSON(w, http.StatusOK, resp)
}

// handleUploadJobResults is the bulk result upload endpoint. Workers post
// results one lease at a time through /v1/leases/complete.
func (s *Server) handleUploadJobResults(w http.ResponseWriter, r *http.Request) {
	s.fail(w, r, notImplemented(fmt.Errorf("bulk result upload is not supported; use /v1/leases/complete")))
}
