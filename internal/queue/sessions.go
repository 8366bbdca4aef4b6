package queue

import (
	"context"

	"jobq/internal/models"
	"jobq/internal/store"
)

// SessionInfo summarises a live session.
type SessionInfo struct {
	Session   models.Session
	Pending   int
	Leased    int
	Processed int
	Watchers  int
}

// Session reports whether sessionID names a live session and what it holds.
// Reaped and unknown ids both yield store.ErrUnknownSession.
func (m *Manager) Session(ctx context.Context, sessionID string) (SessionInfo, error) {
	session, err := m.liveSession(ctx, sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	blobs, err := m.store.ListBlobs(ctx, sessionID, m.clock())
	if err != nil {
		return SessionInfo{}, err
	}

	info := SessionInfo{Session: *session, Watchers: m.events.count(sessionID)}
	for _, blob := range blobs {
		switch blob.State {
		case models.StatePending:
			info.Pending++
		case models.StateLeased:
			info.Leased++
		case models.StateProcessed:
			info.Processed++
		}
	}
	return info, nil
}

// Watch streams changes to a live session. The channel is closed after the
// reaped event, or when cancel is called.
func (m *Manager) Watch(ctx context.Context, sessionID string) (<-chan models.SessionEvent, func(), error) {
	if !store.ValidSessionID(sessionID) {
		return nil, nil, store.ErrUnknownSession
	}
	// Holding the gate keeps a reap from closing the session between the
	// liveness check and the subscription.
	_, release, err := m.gate.enter(sessionID, false)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	if _, err := m.liveSession(ctx, sessionID); err != nil {
		return nil, nil, err
	}
	events, cancel := m.events.subscribe(sessionID)
	return events, cancel, nil
}

func (m *Manager) liveSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if !store.ValidSessionID(sessionID) {
		return nil, store.ErrUnknownSession
	}
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || !session.Live() {
		return nil, store.ErrUnknownSession
	}
	return session, nil
}

func (m *Manager) emit(ev models.SessionEvent) {
	if dropped := m.events.publish(ev); dropped > 0 {
		m.metrics.EventsDropped.Add(float64(dropped))
	}
}
