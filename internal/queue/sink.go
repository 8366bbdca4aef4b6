package queue

import (
	"context"
	"strings"

	"jobq/internal/models"
	"jobq/internal/store"
)

// Complete records the worker's result for a leased blob and marks the blob
// processed in one transaction. A stale, completed or unknown token yields
// store.ErrLeaseExpired and leaves the blob as it was.
func (m *Manager) Complete(ctx context.Context, token, result string) (models.ProcessedResult, error) {
	res, err := m.complete(ctx, token, result)
	m.metrics.Completions.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		m.emit(models.SessionEvent{
			Kind:         models.EventCompleted,
			SessionID:    res.SessionID,
			SequenceTime: res.SequenceTime,
			Message:      res.Message,
			At:           res.CompletedAt,
		})
	}
	return res, err
}

func (m *Manager) complete(ctx context.Context, token, result string) (models.ProcessedResult, error) {
	if strings.TrimSpace(token) == "" {
		return models.ProcessedResult{}, store.ErrLeaseExpired
	}
	hash := store.HashLeaseToken(token)
	release, found, err := m.enterLease(ctx, hash)
	if err != nil {
		return models.ProcessedResult{}, err
	}
	if !found {
		return models.ProcessedResult{}, store.ErrLeaseExpired
	}
	defer release()

	return m.store.CompleteLease(ctx, hash, result, m.clock())
}
