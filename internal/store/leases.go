package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"jobq/internal/models"
)

// ClaimOldestPending leases the oldest claimable blob of a session to the
// holder of tokenHash. It returns nil when nothing is claimable.
//
// The select and the conditional update run in one immediate transaction, so
// a concurrent claim on the same session cannot observe the row as pending.
func (s *Store) ClaimOldestPending(ctx context.Context, sessionID, tokenHash string, now time.Time, ttl time.Duration) (*models.Blob, error) {
	if tokenHash == "" {
		return nil, fmt.Errorf("lease token is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("lease ttl must be positive")
	}

	var claimed *models.Blob
	err := s.withTx(ctx, "claim", func(tx *sql.Tx) error {
		if err := requireLiveSession(ctx, tx, sessionID); err != nil {
			return err
		}

		var seq int64
		err := tx.QueryRowContext(ctx, `SELECT sequence_time FROM blobs
			WHERE session_id = ? AND `+pendingPredicate+`
			ORDER BY sequence_time ASC
			LIMIT 1`, sessionID, unixMicros(now)).Scan(&seq)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		expiresAt := now.Add(ttl)
		row := tx.QueryRowContext(ctx, `
			UPDATE blobs
			SET state = 'leased', lease_token_hash = ?, lease_expires_at = ?, attempts = attempts + 1
			WHERE session_id = ? AND sequence_time = ? AND `+pendingPredicate+`
			RETURNING `+blobColumns,
			tokenHash, unixMicros(expiresAt), sessionID, seq, unixMicros(now),
		)
		blob, err := scanBlob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		claimed = blob
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// RenewLease moves the deadline of an active lease to now+ttl. It returns nil
// when the lease has already expired, been completed, or never existed.
func (s *Store) RenewLease(ctx context.Context, tokenHash string, now time.Time, ttl time.Duration) (*time.Time, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("lease ttl must be positive")
	}
	expiresAt := now.Add(ttl).UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE blobs SET lease_expires_at = ?
		WHERE lease_token_hash = ? AND state = 'leased' AND lease_expires_at > ?
	`, unixMicros(expiresAt), tokenHash, unixMicros(now))
	if err != nil {
		return nil, storageErr("renew", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, storageErr("renew", err)
	}
	if affected == 0 {
		return nil, nil
	}
	return &expiresAt, nil
}

// LeaseOwner resolves a lease token to the blob it was issued for. The lease
// may already be expired.
func (s *Store) LeaseOwner(ctx context.Context, tokenHash string) (models.BlobKey, bool, error) {
	var key models.BlobKey
	err := s.db.QueryRowContext(ctx,
		"SELECT session_id, sequence_time FROM blobs WHERE lease_token_hash = ?", tokenHash,
	).Scan(&key.SessionID, &key.SequenceTime)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BlobKey{}, false, nil
	}
	if err != nil {
		return models.BlobKey{}, false, storageErr("lease owner", err)
	}
	return key, true, nil
}

// CompleteLease validates an active lease, marks its blob processed and
// records the result in one transaction. A stale token yields
// ErrLeaseExpired and leaves the blob untouched.
func (s *Store) CompleteLease(ctx context.Context, tokenHash, result string, now time.Time) (models.ProcessedResult, error) {
	var out models.ProcessedResult
	err := s.withTx(ctx, "complete", func(tx *sql.Tx) error {
		var key models.BlobKey
		var state string
		var expiresAt sql.NullInt64
		err := tx.QueryRowContext(ctx,
			"SELECT session_id, sequence_time, state, lease_expires_at FROM blobs WHERE lease_token_hash = ?",
			tokenHash,
		).Scan(&key.SessionID, &key.SequenceTime, &state, &expiresAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrLeaseExpired
		}
		if err != nil {
			return err
		}
		if models.BlobState(state) != models.StateLeased || !expiresAt.Valid || expiresAt.Int64 <= unixMicros(now) {
			return ErrLeaseExpired
		}

		if _, err := markProcessedTx(ctx, tx, key.SessionID, key.SequenceTime, now); err != nil {
			return err
		}

		out = models.ProcessedResult{
			SessionID:    key.SessionID,
			SequenceTime: key.SequenceTime,
			Message:      result,
			CompletedAt:  now.UTC(),
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO processed_results (session_id, sequence_time, message, completed_at)
			VALUES (?, ?, ?, ?)
		`, out.SessionID, out.SequenceTime, out.Message, formatTime(out.CompletedAt))
		return err
	})
	if err != nil {
		return models.ProcessedResult{}, err
	}
	return out, nil
}

// ReleaseExpiredLeases returns every lease whose deadline passed to pending.
// Renewed leases are compared against their current deadline, never the
// original one.
func (s *Store) ReleaseExpiredLeases(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE blobs
		SET state = 'pending', lease_token_hash = NULL, lease_expires_at = NULL
		WHERE state = 'leased' AND lease_expires_at <= ?
	`, unixMicros(now))
	if err != nil {
		return 0, storageErr("release expired leases", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("release expired leases", err)
	}
	return n, nil
}

// CountActiveLeases counts unexpired leases in a session.
func (s *Store) CountActiveLeases(ctx context.Context, sessionID string, now time.Time) (int, error) {
	n, err := countActiveLeasesTx(ctx, s.db, sessionID, now)
	if err != nil {
		return 0, storageErr("count leases", err)
	}
	return n, nil
}

func countActiveLeasesTx(ctx context.Context, q queryRower, sessionID string, now time.Time) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM blobs
		WHERE session_id = ? AND state = 'leased' AND lease_expires_at > ?
	`, sessionID, unixMicros(now)).Scan(&n)
	return n, err
}
