package queue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"jobq/internal/models"
	"jobq/internal/store"
)

// Manager hands blobs to workers with at most one active lease per blob and
// coordinates session teardown with in-flight work.
type Manager struct {
	store   store.JobStore
	cfg     Config
	gate    *gate
	events  *broker
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock used for sequence times and lease expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMetrics sets the collectors the manager reports to.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// WithLogger sets the logger for background work.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager constructs a Manager over st.
func NewManager(st store.JobStore, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		store:  st,
		cfg:    cfg.withDefaults(),
		gate:   newGate(),
		events: newBroker(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = NewMetrics(nil)
	}
	return m
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Metrics returns the manager's collectors.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.clock()
}

func (m *Manager) clock() time.Time {
	return m.now().UTC()
}

// SubmitRequest is one blob submission.
type SubmitRequest struct {
	// SessionID is empty to open a new session.
	SessionID string
	Message   string
	Author    string
}

// Submit persists a pending blob. An empty session id allocates a new session.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (models.Blob, error) {
	blob, err := m.submit(ctx, req)
	m.metrics.Submissions.WithLabelValues(outcome(err)).Inc()
	if errors.Is(err, store.ErrCollision) {
		m.logger.Error("session id collision", "session_id", req.SessionID, "error", err)
	}
	if err == nil {
		m.emit(models.SessionEvent{
			Kind:         models.EventSubmitted,
			SessionID:    blob.SessionID,
			SequenceTime: blob.SequenceTime,
			Author:       blob.Author,
			Message:      blob.Message,
			At:           blob.SubmittedAt,
		})
	}
	return blob, err
}

func (m *Manager) submit(ctx context.Context, req SubmitRequest) (models.Blob, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return m.store.SubmitBlob(ctx, store.SubmitParams{
			SessionID: store.NewSessionID(),
			Create:    true,
			Message:   req.Message,
			Author:    req.Author,
			Now:       m.clock(),
		})
	}
	if !store.ValidSessionID(sessionID) {
		return models.Blob{}, store.ErrUnknownSession
	}

	_, release, err := m.gate.enter(sessionID, false)
	if err != nil {
		return models.Blob{}, err
	}
	defer release()

	return m.store.SubmitBlob(ctx, store.SubmitParams{
		SessionID: sessionID,
		Message:   req.Message,
		Author:    req.Author,
		Now:       m.clock(),
	})
}

// ListPending returns the non-processed blobs of a session in submission order.
func (m *Manager) ListPending(ctx context.Context, sessionID string) ([]models.Blob, error) {
	if !store.ValidSessionID(sessionID) {
		return nil, store.ErrUnknownSession
	}
	return m.store.ListPending(ctx, sessionID, m.clock())
}

// Transcript returns every blob of a session in submission order.
func (m *Manager) Transcript(ctx context.Context, sessionID string) ([]models.Blob, error) {
	if !store.ValidSessionID(sessionID) {
		return nil, store.ErrUnknownSession
	}
	return m.store.ListBlobs(ctx, sessionID, m.clock())
}

// ListJobs returns claimable blobs of every live session.
func (m *Manager) ListJobs(ctx context.Context, limit int) (map[string][]models.Blob, error) {
	return m.store.ListJobs(ctx, m.clock(), limit)
}

// ListResults returns the processed results of a session.
func (m *Manager) ListResults(ctx context.Context, sessionID string) ([]models.ProcessedResult, error) {
	if !store.ValidSessionID(sessionID) {
		return nil, store.ErrUnknownSession
	}
	return m.store.ListResults(ctx, sessionID)
}

// Lease claims the oldest claimable blob of a session. It returns nil when
// the session has nothing to hand out.
func (m *Manager) Lease(ctx context.Context, sessionID string) (*models.Lease, error) {
	lease, err := m.lease(ctx, sessionID)
	switch {
	case err != nil:
		m.metrics.Leases.WithLabelValues(outcome(err)).Inc()
	case lease == nil:
		m.metrics.Leases.WithLabelValues("empty").Inc()
	default:
		m.metrics.Leases.WithLabelValues("granted").Inc()
		m.emit(models.SessionEvent{
			Kind:         models.EventLeased,
			SessionID:    lease.Blob.SessionID,
			SequenceTime: lease.Blob.SequenceTime,
			Author:       lease.Blob.Author,
			At:           m.clock(),
		})
	}
	return lease, err
}

func (m *Manager) lease(ctx context.Context, sessionID string) (*models.Lease, error) {
	if !store.ValidSessionID(sessionID) {
		return nil, store.ErrUnknownSession
	}

	sg, release, err := m.gate.enter(sessionID, false)
	if err != nil {
		return nil, err
	}
	defer release()

	sg.leaseMu.Lock()
	defer sg.leaseMu.Unlock()

	token := store.NewLeaseToken()
	blob, err := m.store.ClaimOldestPending(ctx, sessionID, store.HashLeaseToken(token), m.clock(), m.cfg.LeaseTTL)
	if err != nil || blob == nil {
		return nil, err
	}
	return &models.Lease{Blob: *blob, Token: token, ExpiresAt: *blob.LeaseExpiresAt}, nil
}

// Renew extends an active lease to now plus the lease TTL. ok is false when
// the lease has expired, been completed, or is unknown.
func (m *Manager) Renew(ctx context.Context, token string) (expiresAt time.Time, ok bool, err error) {
	defer func() {
		switch {
		case err != nil:
			m.metrics.Renewals.WithLabelValues(outcome(err)).Inc()
		case !ok:
			m.metrics.Renewals.WithLabelValues("expired").Inc()
		default:
			m.metrics.Renewals.WithLabelValues("ok").Inc()
		}
	}()

	if strings.TrimSpace(token) == "" {
		return time.Time{}, false, nil
	}
	hash := store.HashLeaseToken(token)
	release, found, err := m.enterLease(ctx, hash)
	if err != nil || !found {
		return time.Time{}, false, err
	}
	defer release()

	renewed, err := m.store.RenewLease(ctx, hash, m.clock(), m.cfg.LeaseTTL)
	if err != nil || renewed == nil {
		return time.Time{}, false, err
	}
	return *renewed, true, nil
}

// enterLease admits a renew or complete call against the session owning the
// lease. found is false when the token does not name any lease.
func (m *Manager) enterLease(ctx context.Context, tokenHash string) (func(), bool, error) {
	key, found, err := m.store.LeaseOwner(ctx, tokenHash)
	if err != nil || !found {
		return nil, false, err
	}
	_, release, err := m.gate.enter(key.SessionID, true)
	if err != nil {
		return nil, false, err
	}
	return release, true, nil
}

// Info returns store statistics.
func (m *Manager) Info(ctx context.Context) (store.StoreInfo, error) {
	return m.store.StoreInfo(ctx)
}
