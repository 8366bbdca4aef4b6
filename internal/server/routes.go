package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check, info and metrics.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// Submission.
	mux.HandleFunc("POST /v1/blobs", s.handleSubmit)

	// Work discovery across sessions.
	mux.HandleFunc("GET /v1/jobs", s.handleListJobs)
	mux.HandleFunc("POST /v1/jobs", s.handleUploadJobResults)

	// Leases.
	mux.HandleFunc("POST /v1/leases/renew", s.handleRenew)
	mux.HandleFunc("POST /v1/leases/complete", s.handleComplete)

	// Single session.
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("GET /v1/sessions/{id}/events", s.handleSessionEvents)
	mux.HandleFunc("GET /v1/sessions/{id}/pending", s.handleListPending)
	mux.HandleFunc("POST /v1/sessions/{id}/lease", s.handleLease)
	mux.HandleFunc("GET /v1/sessions/{id}/results", s.handleListResults)
	mux.HandleFunc("GET /v1/sessions/{id}/results/download", s.handleDownloadResults)
	mux.HandleFunc("GET /v1/sessions/{id}/transcript", s.handleTranscript)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleReap)

	return mux
}
