package models

import "time"

// Session is a client-scoped collection of blobs.
type Session struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	LastSeq   int64      `json:"last_seq"`
	ReapedAt  *time.Time `json:"reaped_at,omitempty"`
}

// Live reports whether the session still accepts work.
func (s Session) Live() bool {
	return s.ReapedAt == nil
}

// ProcessedResult is the worker output recorded for one blob.
type ProcessedResult struct {
	SessionID    string    `json:"session_id"`
	SequenceTime int64     `json:"sequence_time"`
	Message      string    `json:"message"`
	CompletedAt  time.Time `json:"completed_at"`
}
