package queue

import (
	"context"
	"time"

	"jobq/internal/models"
	"jobq/internal/store"
)

// Reap deletes every blob and result of a session and retires its id.
//
// The session is first closed to submit and lease. Reap then waits, up to the
// drain timeout, for active leases and for every call admitted before the
// close to finish. Leases still active afterwards are force-expired when ForceExpire
// is set; otherwise Reap fails with store.ErrSessionBusy and the session is
// reopened.
func (m *Manager) Reap(ctx context.Context, sessionID string) (store.ReapStats, error) {
	stats, err := m.reap(ctx, sessionID)
	m.metrics.Reaps.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		m.logger.Warn("reap failed", "component", "reaper", "session_id", sessionID, "error", err)
	} else {
		m.logger.Info("session reaped", "component", "reaper", "session_id", sessionID,
			"blobs", stats.Blobs, "results", stats.Results, "expired_leases", stats.ExpiredLeases)
	}
	return stats, err
}

func (m *Manager) reap(ctx context.Context, sessionID string) (store.ReapStats, error) {
	if _, err := m.liveSession(ctx, sessionID); err != nil {
		return store.ReapStats{}, err
	}

	sg, err := m.gate.beginDrain(sessionID)
	if err != nil {
		return store.ReapStats{}, err
	}
	m.metrics.Draining.Inc()
	defer func() {
		m.metrics.Draining.Dec()
		m.gate.endDrain(sessionID)
	}()

	idle, err := m.waitIdle(ctx, sessionID)
	if err != nil {
		return store.ReapStats{}, err
	}
	if !idle && !m.cfg.ForceExpire {
		return store.ReapStats{}, store.ErrSessionBusy
	}

	sg.leaseMu.Lock()
	defer sg.leaseMu.Unlock()
	stats, err := m.store.DeleteSession(ctx, sessionID, m.clock(), m.cfg.ForceExpire)
	if err != nil {
		return store.ReapStats{}, err
	}
	dropped := m.events.closeSession(models.SessionEvent{
		Kind:      models.EventReaped,
		SessionID: sessionID,
		At:        m.clock(),
	})
	m.metrics.EventsDropped.Add(float64(dropped))
	return stats, nil
}

// waitIdle polls until the session has no active lease and no admitted call
// in flight, or the drain timeout elapses.
func (m *Manager) waitIdle(ctx context.Context, sessionID string) (bool, error) {
	deadline := time.Now().Add(m.cfg.DrainTimeout)
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		active, err := m.store.CountActiveLeases(ctx, sessionID, m.clock())
		if err != nil {
			return false, err
		}
		if active == 0 && m.gate.inflight(sessionID) == 0 {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}
