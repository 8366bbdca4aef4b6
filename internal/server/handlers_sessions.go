package server

import (
	"fmt"
	"net/http"

	"jobq/internal/api"
)

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.pathSessionID(w, r)
	if !ok {
		return
	}

	info, err := s.queue.Session(r.Context(), sessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.SessionResponse{
		Session:   info.Session,
		Pending:   info.Pending,
		Leased:    info.Leased,
		Processed: info.Processed,
		Watchers:  info.Watchers,
	})
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.pathSessionID(w, r)
	if !ok {
		return
	}

	results, err := s.queue.ListResults(r.Context(), sessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.ResultsResponse{SessionID: sessionID, Results: results})
}

func (s *Server) handleDownloadResults(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.pathSessionID(w, r)
	if !ok {
		return
	}

	results, err := s.queue.ListResults(r.Context(), sessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	generatedAt := s.queue.Now()
	body, err := renderResultsMarkdown(sessionID, generatedAt, results)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resultsFileName(generatedAt)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.log().Error("write results download", "session_id", sessionID, "error", err)
	}
}

func (s *Server) handleReap(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.pathSessionID(w, r)
	if !ok {
		return
	}

	stats, err := s.queue.Reap(r.Context(), sessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.ReapResponse{
		SessionID:     sessionID,
		Blobs:         stats.Blobs,
		Results:       stats.Results,
		ExpiredLeases: stats.ExpiredLeases,
	})
}
