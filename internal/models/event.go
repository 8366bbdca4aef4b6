package models

import "time"

// EventKind names a change to a session.
type EventKind string

const (
	EventSubmitted EventKind = "submitted"
	EventLeased    EventKind = "leased"
	EventCompleted EventKind = "completed"
	// EventReaped is always the last event of a session.
	EventReaped EventKind = "reaped"
)

// SessionEvent is one change to a session as seen by its watchers. Message
// carries the blob text for submitted events and the worker result for
// completed ones.
type SessionEvent struct {
	Kind         EventKind `json:"kind"`
	SessionID    string    `json:"session_id"`
	SequenceTime int64     `json:"sequence_time,omitempty"`
	Author       string    `json:"author,omitempty"`
	Message      string    `json:"message,omitempty"`
	At           time.Time `json:"at"`
}
