package api

import (
	"time"

	"jobq/internal/models"
)

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// InfoResponse describes server and database state.
type InfoResponse struct {
	DBPath         string         `json:"db_path"`
	SchemaVersion  int            `json:"schema_version"`
	LiveSessions   int            `json:"live_sessions"`
	ReapedSessions int            `json:"reaped_sessions"`
	BlobCounts     map[string]int `json:"blob_counts"`
	TotalBlobs     int            `json:"total_blobs"`
	Results        int            `json:"results"`
	LeaseTTL       string         `json:"lease_ttl"`
}

// SubmitRequest submits one blob. An empty SessionID opens a new session.
type SubmitRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	Author    string `json:"author,omitempty"`
}

// SubmitResponse identifies the stored blob.
type SubmitResponse struct {
	SessionID    string `json:"session_id"`
	SequenceTime int64  `json:"sequence_time"`
}

// PendingResponse lists the unprocessed blobs of a session.
type PendingResponse struct {
	SessionID string        `json:"session_id"`
	Blobs     []models.Blob `json:"blobs"`
}

// LeaseResponse carries a leased blob and the token that owns it.
type LeaseResponse struct {
	Blob      models.Blob `json:"blob"`
	Token     string      `json:"lease_token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// RenewRequest extends a lease.
type RenewRequest struct {
	Token string `json:"lease_token"`
}

// RenewResponse reports whether the lease is still held.
type RenewResponse struct {
	Renewed   bool       `json:"renewed"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CompleteRequest posts a worker result for a leased blob.
type CompleteRequest struct {
	Token  string `json:"lease_token"`
	Result string `json:"result"`
}

// CompleteResponse echoes the stored result.
type CompleteResponse struct {
	Result models.ProcessedResult `json:"result"`
}

// ResultsResponse lists the processed results of a session.
type ResultsResponse struct {
	SessionID string                   `json:"session_id"`
	Results   []models.ProcessedResult `json:"results"`
}

// SessionJobs groups claimable blobs by session.
type SessionJobs struct {
	SessionID string        `json:"session_id"`
	Blobs     []models.Blob `json:"blobs"`
}

// JobsResponse lists claimable work across sessions.
type JobsResponse struct {
	Sessions []SessionJobs `json:"sessions"`
	Total    int           `json:"total"`
}

// SessionResponse describes a live session.
type SessionResponse struct {
	Session   models.Session `json:"session"`
	Pending   int            `json:"pending"`
	Leased    int            `json:"leased"`
	Processed int            `json:"processed"`
	Watchers  int            `json:"watchers"`
}

// ReapResponse reports what a session teardown removed.
type ReapResponse struct {
	SessionID     string `json:"session_id"`
	Blobs         int64  `json:"blobs"`
	Results       int64  `json:"results"`
	ExpiredLeases int64  `json:"expired_leases"`
}
