package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"jobq/internal/models"
)

const blobColumns = "session_id, sequence_time, message, author, state, attempts, submitted_at, lease_expires_at, processed_at"

// pendingPredicate matches blobs a worker may claim at time ?: never leased,
// or leased with an expired deadline.
const pendingPredicate = "(state = 'pending' OR (state = 'leased' AND lease_expires_at <= ?))"

// SubmitBlob persists one pending blob. When params.Create is set the session
// row is created first; an existing row with the same id is a collision.
// The sequence time is max(previous+1, now in microseconds), so it is strictly
// increasing within a session even when the clock stalls or steps back.
func (s *Store) SubmitBlob(ctx context.Context, params SubmitParams) (models.Blob, error) {
	if params.SessionID == "" {
		return models.Blob{}, fmt.Errorf("session id is required")
	}
	now := params.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	blob := models.Blob{
		SessionID:   params.SessionID,
		Message:     params.Message,
		Author:      params.Author,
		State:       models.StatePending,
		SubmittedAt: now,
	}

	err := s.withTx(ctx, "submit", func(tx *sql.Tx) error {
		if params.Create {
			existing, err := getSessionTx(ctx, tx, params.SessionID)
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("session %s: %w", params.SessionID, ErrCollision)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO sessions (id, created_at, last_seq) VALUES (?, ?, 0)",
				params.SessionID, formatTime(now),
			); err != nil {
				return err
			}
		}

		err := tx.QueryRowContext(ctx, `
			UPDATE sessions SET last_seq = MAX(last_seq + 1, ?)
			WHERE id = ? AND reaped_at IS NULL
			RETURNING last_seq
		`, unixMicros(now), params.SessionID).Scan(&blob.SequenceTime)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUnknownSession
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO blobs (session_id, sequence_time, message, author, state, attempts, submitted_at)
			VALUES (?, ?, ?, ?, ?, 0, ?)
		`, blob.SessionID, blob.SequenceTime, blob.Message, nullIfEmpty(blob.Author), string(models.StatePending), formatTime(now))
		return err
	})
	if err != nil {
		return models.Blob{}, err
	}
	return blob, nil
}

// ListPending returns every non-processed blob of a session ordered by
// sequence time. Leases that expired before now are reported as pending.
func (s *Store) ListPending(ctx context.Context, sessionID string, now time.Time) ([]models.Blob, error) {
	if err := requireLiveSession(ctx, s.db, sessionID); err != nil {
		return nil, storageErr("list pending", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+blobColumns+` FROM blobs
		WHERE session_id = ? AND state != 'processed'
		ORDER BY sequence_time ASC`, sessionID)
	if err != nil {
		return nil, storageErr("list pending", err)
	}
	blobs, err := scanBlobs(rows, now)
	if err != nil {
		return nil, storageErr("list pending", err)
	}
	return blobs, nil
}

// ListBlobs returns every blob of a session, processed ones included, ordered
// by sequence time.
func (s *Store) ListBlobs(ctx context.Context, sessionID string, now time.Time) ([]models.Blob, error) {
	if err := requireLiveSession(ctx, s.db, sessionID); err != nil {
		return nil, storageErr("list blobs", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+blobColumns+` FROM blobs
		WHERE session_id = ?
		ORDER BY sequence_time ASC`, sessionID)
	if err != nil {
		return nil, storageErr("list blobs", err)
	}
	blobs, err := scanBlobs(rows, now)
	if err != nil {
		return nil, storageErr("list blobs", err)
	}
	return blobs, nil
}

// ListJobs returns claimable blobs of all live sessions grouped by session id.
// A limit of zero means no limit.
func (s *Store) ListJobs(ctx context.Context, now time.Time, limit int) (map[string][]models.Blob, error) {
	query := `SELECT b.session_id, b.sequence_time, b.message, b.author, b.state, b.attempts, b.submitted_at, b.lease_expires_at, b.processed_at
		FROM blobs b
		JOIN sessions s ON s.id = b.session_id
		WHERE s.reaped_at IS NULL
		  AND (b.state = 'pending' OR (b.state = 'leased' AND b.lease_expires_at <= ?))
		ORDER BY b.session_id ASC, b.sequence_time ASC`
	args := []any{unixMicros(now)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list jobs", err)
	}
	blobs, err := scanBlobs(rows, now)
	if err != nil {
		return nil, storageErr("list jobs", err)
	}

	jobs := make(map[string][]models.Blob)
	for _, blob := range blobs {
		jobs[blob.SessionID] = append(jobs[blob.SessionID], blob)
	}
	return jobs, nil
}

// MarkProcessed transitions one blob to processed. It is a no-op when the
// blob is already processed.
func (s *Store) MarkProcessed(ctx context.Context, sessionID string, sequenceTime int64, now time.Time) error {
	return s.withTx(ctx, "mark processed", func(tx *sql.Tx) error {
		_, err := markProcessedTx(ctx, tx, sessionID, sequenceTime, now)
		return err
	})
}

// markProcessedTx reports whether the row changed state.
func markProcessedTx(ctx context.Context, tx *sql.Tx, sessionID string, sequenceTime int64, now time.Time) (bool, error) {
	var state string
	err := tx.QueryRowContext(ctx,
		"SELECT state FROM blobs WHERE session_id = ? AND sequence_time = ?",
		sessionID, sequenceTime,
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}

	from := models.BlobState(state)
	if from == models.StateProcessed {
		return false, nil
	}
	if !models.IsValidTransition(from, models.StateProcessed) {
		return false, fmt.Errorf("invalid transition %s -> %s", from, models.StateProcessed)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE blobs
		SET state = 'processed', processed_at = ?, lease_token_hash = NULL, lease_expires_at = NULL
		WHERE session_id = ? AND sequence_time = ?
	`, formatTime(now), sessionID, sequenceTime)
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanBlobs(rows *sql.Rows, now time.Time) ([]models.Blob, error) {
	defer rows.Close()

	blobs := []models.Blob{}
	for rows.Next() {
		blob, err := scanBlob(rows)
		if err != nil {
			return nil, err
		}
		if state := blob.EffectiveState(now); state != blob.State {
			blob.State = state
			blob.LeaseExpiresAt = nil
		}
		blobs = append(blobs, *blob)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return blobs, nil
}

func scanBlob(scanner interface {
	Scan(dest ...any) error
}) (*models.Blob, error) {
	var blob models.Blob
	var author, processedAt sql.NullString
	var state, submittedAt string
	var leaseExpiresAt sql.NullInt64

	if err := scanner.Scan(
		&blob.SessionID,
		&blob.SequenceTime,
		&blob.Message,
		&author,
		&state,
		&blob.Attempts,
		&submittedAt,
		&leaseExpiresAt,
		&processedAt,
	); err != nil {
		return nil, err
	}

	var err error
	blob.Author = author.String
	if blob.State, err = models.ParseBlobState(state); err != nil {
		return nil, err
	}
	if blob.SubmittedAt, err = parseTime(submittedAt); err != nil {
		return nil, err
	}
	if blob.ProcessedAt, err = parseNullTime(processedAt); err != nil {
		return nil, err
	}
	blob.LeaseExpiresAt = fromUnixMicros(leaseExpiresAt)
	return &blob, nil
}
