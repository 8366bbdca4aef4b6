package queue

import (
	"context"
	"time"
)

// RunReclaimer returns expired leases to pending every ReclaimInterval until
// ctx is cancelled. Expiry is also applied lazily on claim and list, so the
// sweep only keeps stored state tidy.
func (m *Manager) RunReclaimer(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.ReclaimInterval)
	defer ticker.Stop()

	m.logger.Info("lease reclaimer started", "component", "reclaimer", "interval", m.cfg.ReclaimInterval)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("lease reclaimer stopping", "component", "reclaimer")
			return nil
		case <-ticker.C:
			if _, err := m.ReclaimOnce(ctx); err != nil && ctx.Err() == nil {
				m.logger.Error("lease reclaim failed", "component", "reclaimer", "error", err)
			}
		}
	}
}

// ReclaimOnce runs a single sweep and reports how many leases were released.
func (m *Manager) ReclaimOnce(ctx context.Context) (int64, error) {
	n, err := m.store.ReleaseExpiredLeases(ctx, m.clock())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.metrics.Reclaimed.Add(float64(n))
		m.logger.Info("reclaimed expired leases", "component", "reclaimer", "count", n)
	}
	return n, nil
}
