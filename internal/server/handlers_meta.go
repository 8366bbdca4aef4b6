package server

import (
	"net/http"

	"jobq/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.queue.Info(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := api.InfoResponse{
		DBPath:         s.dbPath,
		SchemaVersion:  info.SchemaVersion,
		LiveSessions:   info.LiveSessions,
		ReapedSessions: info.ReapedSessions,
		BlobCounts:     info.BlobCounts,
		TotalBlobs:     info.TotalBlobs,
		Results:        info.Results,
		LeaseTTL:       s.queue.Config().LeaseTTL.String(),
	}

	s.writeJSON(w, http.StatusOK, resp)
}
