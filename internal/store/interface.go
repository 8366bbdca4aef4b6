package store

import (
	"context"
	"time"

	"jobq/internal/models"
)

// SubmitParams describes one blob submission.
type SubmitParams struct {
	// SessionID names the target session. When Create is set it is a freshly
	// allocated identifier that must not exist yet.
	SessionID string
	Create    bool
	Message   string
	Author    string
	Now       time.Time
}

// JobStore abstracts the durable queue backend.
type JobStore interface {
	SubmitBlob(ctx context.Context, params SubmitParams) (models.Blob, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListPending(ctx context.Context, sessionID string, now time.Time) ([]models.Blob, error)
	ListBlobs(ctx context.Context, sessionID string, now time.Time) ([]models.Blob, error)
	ListJobs(ctx context.Context, now time.Time, limit int) (map[string][]models.Blob, error)
	MarkProcessed(ctx context.Context, sessionID string, sequenceTime int64, now time.Time) error

	ClaimOldestPending(ctx context.Context, sessionID, tokenHash string, now time.Time, ttl time.Duration) (*models.Blob, error)
	RenewLease(ctx context.Context, tokenHash string, now time.Time, ttl time.Duration) (*time.Time, error)
	LeaseOwner(ctx context.Context, tokenHash string) (models.BlobKey, bool, error)
	CompleteLease(ctx context.Context, tokenHash, result string, now time.Time) (models.ProcessedResult, error)
	ReleaseExpiredLeases(ctx context.Context, now time.Time) (int64, error)
	CountActiveLeases(ctx context.Context, sessionID string, now time.Time) (int, error)

	ListResults(ctx context.Context, sessionID string) ([]models.ProcessedResult, error)
	DeleteSession(ctx context.Context, sessionID string, now time.Time, force bool) (ReapStats, error)
	StoreInfo(ctx context.Context) (StoreInfo, error)
}

var _ JobStore = (*Store)(nil)
