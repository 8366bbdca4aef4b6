package store

import (
	"context"

	"jobq/internal/models"
)

// StoreInfo summarizes the database contents.
type StoreInfo struct {
	SchemaVersion  int            `json:"schema_version"`
	LiveSessions   int            `json:"live_sessions"`
	ReapedSessions int            `json:"reaped_sessions"`
	BlobCounts     map[string]int `json:"blob_counts"`
	TotalBlobs     int            `json:"total_blobs"`
	Results        int            `json:"results"`
}

// StoreInfo returns schema version and row counts.
func (s *Store) StoreInfo(ctx context.Context) (StoreInfo, error) {
	info := StoreInfo{BlobCounts: map[string]int{}}
	for _, state := range models.BlobStateStrings() {
		info.BlobCounts[state] = 0
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&info.SchemaVersion); err != nil {
		return StoreInfo{}, storageErr("info", err)
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN reaped_at IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN reaped_at IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM sessions
	`).Scan(&info.LiveSessions, &info.ReapedSessions); err != nil {
		return StoreInfo{}, storageErr("info", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT state, COUNT(*) FROM blobs GROUP BY state")
	if err != nil {
		return StoreInfo{}, storageErr("info", err)
	}
	defer rows.Close()
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return StoreInfo{}, storageErr("info", err)
		}
		info.BlobCounts[state] = count
		info.TotalBlobs += count
	}
	if err := rows.Err(); err != nil {
		return StoreInfo{}, storageErr("info", err)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM processed_results").Scan(&info.Results); err != nil {
		return StoreInfo{}, storageErr("info", err)
	}
	return info, nil
}
