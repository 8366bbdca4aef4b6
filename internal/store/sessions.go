package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"jobq/internal/models"
)

// ReapStats reports what a session teardown removed.
type ReapStats struct {
	Blobs         int64 `json:"blobs"`
	Results       int64 `json:"results"`
	ExpiredLeases int64 `json:"expired_leases"`
}

// GetSession returns a session by id, or nil if it was never issued.
// Reaped sessions are returned with ReapedAt set.
func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := getSessionTx(ctx, s.db, id)
	if err != nil {
		return nil, storageErr("get session", err)
	}
	return session, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSessionTx(ctx context.Context, q queryRower, id string) (*models.Session, error) {
	var session models.Session
	var createdAt string
	var reapedAt sql.NullString
	err := q.QueryRowContext(ctx, "SELECT id, created_at, last_seq, reaped_at FROM sessions WHERE id = ?", id).
		Scan(&session.ID, &createdAt, &session.LastSeq, &reapedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if session.ReapedAt, err = parseNullTime(reapedAt); err != nil {
		return nil, err
	}
	return &session, nil
}

// requireLiveSession returns ErrUnknownSession unless id names a session that
// has not been reaped.
func requireLiveSession(ctx context.Context, q queryRower, id string) error {
	session, err := getSessionTx(ctx, q, id)
	if err != nil {
		return err
	}
	if session == nil || !session.Live() {
		return ErrUnknownSession
	}
	return nil
}

// DeleteSession removes every blob and result of a session and tombstones the
// session id so it is never reissued. Unless force is set, the call fails
// with ErrSessionBusy while any lease in the session is still active.
func (s *Store) DeleteSession(ctx context.Context, sessionID string, now time.Time, force bool) (ReapStats, error) {
	var stats ReapStats
	err := s.withTx(ctx, "delete session", func(tx *sql.Tx) error {
		if err := requireLiveSession(ctx, tx, sessionID); err != nil {
			return err
		}

		active, err := countActiveLeasesTx(ctx, tx, sessionID, now)
		if err != nil {
			return err
		}
		if active > 0 && !force {
			return ErrSessionBusy
		}
		stats.ExpiredLeases = int64(active)

		res, err := tx.ExecContext(ctx, "DELETE FROM processed_results WHERE session_id = ?", sessionID)
		if err != nil {
			return err
		}
		if stats.Results, err = res.RowsAffected(); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, "DELETE FROM blobs WHERE session_id = ?", sessionID)
		if err != nil {
			return err
		}
		if stats.Blobs, err = res.RowsAffected(); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "UPDATE sessions SET reaped_at = ? WHERE id = ?", formatTime(now), sessionID)
		return err
	})
	if err != nil {
		return ReapStats{}, err
	}
	return stats, nil
}
