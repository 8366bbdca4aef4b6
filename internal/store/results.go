package store

import (
	"context"

	"jobq/internal/models"
)

// ListResults returns the processed results of a session ordered by the
// sequence time of their source blob.
func (s *Store) ListResults(ctx context.Context, sessionID string) ([]models.ProcessedResult, error) {
	if err := requireLiveSession(ctx, s.db, sessionID); err != nil {
		return nil, storageErr("list results", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, sequence_time, message, completed_at
		FROM processed_results
		WHERE session_id = ?
		ORDER BY sequence_time ASC
	`, sessionID)
	if err != nil {
		return nil, storageErr("list results", err)
	}
	defer rows.Close()

	results := []models.ProcessedResult{}
	for rows.Next() {
		var result models.ProcessedResult
		var completedAt string
		if err := rows.Scan(&result.SessionID, &result.SequenceTime, &result.Message, &completedAt); err != nil {
			return nil, storageErr("list results", err)
		}
		if result.CompletedAt, err = parseTime(completedAt); err != nil {
			return nil, storageErr("list results", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list results", err)
	}
	return results, nil
}
