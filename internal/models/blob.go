package models

import "time"

// BlobKey identifies one blob within the queue.
type BlobKey struct {
	SessionID    string `json:"session_id"`
	SequenceTime int64  `json:"sequence_time"`
}

// Blob is one submitted unit of text awaiting processing.
type Blob struct {
	SessionID      string     `json:"session_id"`
	SequenceTime   int64      `json:"sequence_time"`
	Message        string     `json:"message"`
	Author         string     `json:"author,omitempty"`
	State          BlobState  `json:"state"`
	Attempts       int        `json:"attempts"`
	SubmittedAt    time.Time  `json:"submitted_at"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
}

// Key returns the composite primary key of the blob.
func (b Blob) Key() BlobKey {
	return BlobKey{SessionID: b.SessionID, SequenceTime: b.SequenceTime}
}

// EffectiveState reports the state as observed at now: a lease that has
// expired counts as pending.
func (b Blob) EffectiveState(now time.Time) BlobState {
	if b.State == StateLeased && b.LeaseExpiresAt != nil && !b.LeaseExpiresAt.After(now) {
		return StatePending
	}
	return b.State
}

// Lease is a time-bounded exclusive claim on a blob. Token is only populated
// when the lease is first issued.
type Lease struct {
	Blob      Blob      `json:"blob"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
