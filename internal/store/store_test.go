package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"jobq/internal/models"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(Options{Path: path})
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func submitNew(t *testing.T, st *Store, message string) models.Blob {
	t.Helper()
	blob, err := st.SubmitBlob(context.Background(), SubmitParams{
		SessionID: NewSessionID(),
		Create:    true,
		Message:   message,
		Now:       testNow,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return blob
}

func submitTo(t *testing.T, st *Store, sessionID, message string, now time.Time) models.Blob {
	t.Helper()
	blob, err := st.SubmitBlob(context.Background(), SubmitParams{SessionID: sessionID, Message: message, Now: now})
	if err != nil {
		t.Fatalf("submit to %s: %v", sessionID, err)
	}
	return blob
}

func TestSqliteDSN(t *testing.T) {
	dsn, err := sqliteDSN(Options{Path: "/tmp/q.db", BusyTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	for _, want := range []string{"file:/tmp/q.db?", "busy_timeout%282000%29", "foreign_keys%281%29", "_txlock=immediate"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("expected dsn %q to contain %q", dsn, want)
		}
	}

	if _, err := sqliteDSN(Options{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{Path: "x", MaxOpenConns: 1, MaxIdleConns: 4}.withDefaults()
	if opts.BusyTimeout != DefaultBusyTimeout {
		t.Fatalf("expected default busy timeout, got %v", opts.BusyTimeout)
	}
	if opts.MaxIdleConns != 1 {
		t.Fatalf("expected idle conns clamped to open conns, got %d", opts.MaxIdleConns)
	}
}

func TestSubmitCreatesSession(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	blob := submitNew(t, st, "hello")
	if blob.State != models.StatePending {
		t.Fatalf("expected pending, got %q", blob.State)
	}
	if blob.SequenceTime != testNow.UnixMicro() {
		t.Fatalf("expected sequence time %d, got %d", testNow.UnixMicro(), blob.SequenceTime)
	}

	session, err := st.GetSession(ctx, blob.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session == nil || !session.Live() {
		t.Fatalf("expected live session, got %+v", session)
	}
	if session.LastSeq != blob.SequenceTime {
		t.Fatalf("expected last_seq %d, got %d", blob.SequenceTime, session.LastSeq)
	}
}

func TestSubmitSequenceStrictlyIncreasing(t *testing.T) {
	st := testStore(t)
	first := submitNew(t, st, "a")

	// Same clock reading and a clock that stepped backwards.
	second := submitTo(t, st, first.SessionID, "b", testNow)
	third := submitTo(t, st, first.SessionID, "c", testNow.Add(-time.Hour))
	fourth := submitTo(t, st, first.SessionID, "d", testNow.Add(time.Second))

	if !(first.SequenceTime < second.SequenceTime && second.SequenceTime < third.SequenceTime && third.SequenceTime < fourth.SequenceTime) {
		t.Fatalf("expected strictly increasing sequence, got %d %d %d %d",
			first.SequenceTime, second.SequenceTime, third.SequenceTime, fourth.SequenceTime)
	}
	if fourth.SequenceTime != testNow.Add(time.Second).UnixMicro() {
		t.Fatalf("expected sequence to follow the clock when it advances, got %d", fourth.SequenceTime)
	}
}

func TestSubmitUnknownSession(t *testing.T) {
	st := testStore(t)
	_, err := st.SubmitBlob(context.Background(), SubmitParams{SessionID: NewSessionID(), Message: "x", Now: testNow})
	if !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
}

func TestSubmitCollision(t *testing.T) {
	st := testStore(t)
	blob := submitNew(t, st, "first")

	_, err := st.SubmitBlob(context.Background(), SubmitParams{SessionID: blob.SessionID, Create: true, Message: "second", Now: testNow})
	if !errors.Is(err, ErrCollision) {
		t.Fatalf("expected ErrCollision, got %v", err)
	}

	pending, err := st.ListPending(context.Background(), blob.SessionID, testNow)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Message != "first" {
		t.Fatalf("collision must not write, got %+v", pending)
	}
}

func TestListPendingOrdering(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	first := submitNew(t, st, "one")
	submitTo(t, st, first.SessionID, "two", testNow.Add(time.Millisecond))
	third := submitTo(t, st, first.SessionID, "three", testNow.Add(2*time.Millisecond))

	if err := st.MarkProcessed(ctx, first.SessionID, third.SequenceTime, testNow); err != nil {
		t.Fatalf("mark processed: %v", err)
	}

	pending, err := st.ListPending(ctx, first.SessionID, testNow)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	if pending[0].Message != "one" || pending[1].Message != "two" {
		t.Fatalf("unexpected order: %+v", pending)
	}

	if _, err := st.ListPending(ctx, NewSessionID(), testNow); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
}

func TestMarkProcessed(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	blob := submitNew(t, st, "x")

	if err := st.MarkProcessed(ctx, blob.SessionID, blob.SequenceTime+1, testNow); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := st.MarkProcessed(ctx, blob.SessionID, blob.SequenceTime, testNow); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	if err := st.MarkProcessed(ctx, blob.SessionID, blob.SequenceTime, testNow); err != nil {
		t.Fatalf("second mark processed should be a no-op, got %v", err)
	}

	blobs, err := st.ListBlobs(ctx, blob.SessionID, testNow)
	if err != nil {
		t.Fatalf("list blobs: %v", err)
	}
	if len(blobs) != 1 || blobs[0].State != models.StateProcessed || blobs[0].ProcessedAt == nil {
		t.Fatalf("expected processed blob, got %+v", blobs)
	}
}

func TestClaimOldestPending(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	first := submitNew(t, st, "one")
	submitTo(t, st, first.SessionID, "two", testNow)

	claimed, err := st.ClaimOldestPending(ctx, first.SessionID, HashLeaseToken("t1"), testNow, time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.Message != "one" {
		t.Fatalf("expected oldest blob, got %+v", claimed)
	}
	if claimed.State != models.StateLeased || claimed.Attempts != 1 {
		t.Fatalf("expected leased with one attempt, got %+v", claimed)
	}
	if claimed.LeaseExpiresAt == nil || !claimed.LeaseExpiresAt.Equal(testNow.Add(time.Minute)) {
		t.Fatalf("unexpected expiry %v", claimed.LeaseExpiresAt)
	}

	next, err := st.ClaimOldestPending(ctx, first.SessionID, HashLeaseToken("t2"), testNow, time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if next == nil || next.Message != "two" {
		t.Fatalf("expected second blob, got %+v", next)
	}

	none, err := st.ClaimOldestPending(ctx, first.SessionID, HashLeaseToken("t3"), testNow, time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if none != nil {
		t.Fatalf("expected nothing claimable, got %+v", none)
	}

	if _, err := st.ClaimOldestPending(ctx, NewSessionID(), HashLeaseToken("t4"), testNow, time.Minute); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
}

func TestClaimReclaimsExpiredLease(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	blob := submitNew(t, st, "retry me")

	if _, err := st.ClaimOldestPending(ctx, blob.SessionID, HashLeaseToken("old"), testNow, time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}

	later := testNow.Add(2 * time.Minute)
	pending, err := st.ListPending(ctx, blob.SessionID, later)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].State != models.StatePending || pending[0].LeaseExpiresAt != nil {
		t.Fatalf("expected expired lease to read as pending, got %+v", pending)
	}

	again, err := st.ClaimOldestPending(ctx, blob.SessionID, HashLeaseToken("new"), later, time.Minute)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if again == nil || again.Attempts != 2 {
		t.Fatalf("expected blob leased a second time, got %+v", again)
	}

	if _, err := st.CompleteLease(ctx, HashLeaseToken("old"), "late", later); !errors.Is(err, ErrLeaseExpired) {
		t.Fatalf("expected stale token to be rejected, got %v", err)
	}
}

func TestRenewLease(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	blob := submitNew(t, st, "x")
	hash := HashLeaseToken("renew")

	if _, err := st.ClaimOldestPending(ctx, blob.SessionID, hash, testNow, time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}

	renewAt := testNow.Add(50 * time.Second)
	expiresAt, err := st.RenewLease(ctx, hash, renewAt, time.Minute)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if expiresAt == nil || !expiresAt.Equal(renewAt.Add(time.Minute)) {
		t.Fatalf("unexpected renewed expiry %v", expiresAt)
	}

	// Past the original deadline but inside the renewed one.
	afterOriginal := testNow.Add(90 * time.Second)
	released, err := st.ReleaseExpiredLeases(ctx, afterOriginal)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released != 0 {
		t.Fatalf("renewed lease must not be released, released %d", released)
	}
	active, err := st.CountActiveLeases(ctx, blob.SessionID, afterOriginal)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if active != 1 {
		t.Fatalf("expected 1 active lease, got %d", active)
	}

	expired, err := st.RenewLease(ctx, hash, testNow.Add(5*time.Minute), time.Minute)
	if err != nil {
		t.Fatalf("renew expired: %v", err)
	}
	if expired != nil {
		t.Fatalf("expected renew of expired lease to fail, got %v", expired)
	}

	unknown, err := st.RenewLease(ctx, HashLeaseToken("nope"), testNow, time.Minute)
	if err != nil {
		t.Fatalf("renew unknown: %v", err)
	}
	if unknown != nil {
		t.Fatal("expected renew of unknown token to fail")
	}
}

func TestCompleteLease(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	blob := submitNew(t, st, "hello")
	hash := HashLeaseToken("done")

	if _, err := st.ClaimOldestPending(ctx, blob.SessionID, hash, testNow, time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}

	owner, ok, err := st.LeaseOwner(ctx, hash)
	if err != nil || !ok {
		t.Fatalf("lease owner: ok=%v err=%v", ok, err)
	}
	if owner != blob.Key() {
		t.Fatalf("expected owner %+v, got %+v", blob.Key(), owner)
	}

	result, err := st.CompleteLease(ctx, hash, "HELLO", testNow.Add(time.Second))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if result.Message != "HELLO" || result.SequenceTime != blob.SequenceTime {
		t.Fatalf("unexpected result %+v", result)
	}

	if _, err := st.CompleteLease(ctx, hash, "again", testNow.Add(2*time.Second)); !errors.Is(err, ErrLeaseExpired) {
		t.Fatalf("expected completed token to be rejected, got %v", err)
	}

	pending, err := st.ListPending(ctx, blob.SessionID, testNow)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending blobs, got %+v", pending)
	}

	results, err := st.ListResults(ctx, blob.SessionID)
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(results) != 1 || results[0].Message != "HELLO" {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestCompleteExpiredLeaseLeavesBlobPending(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	blob := submitNew(t, st, "slow")
	hash := HashLeaseToken("slow")

	if _, err := st.ClaimOldestPending(ctx, blob.SessionID, hash, testNow, time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}

	late := testNow.Add(time.Minute)
	if _, err := st.CompleteLease(ctx, hash, "too late", late); !errors.Is(err, ErrLeaseExpired) {
		t.Fatalf("expected ErrLeaseExpired, got %v", err)
	}

	pending, err := st.ListPending(ctx, blob.SessionID, late)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].State != models.StatePending {
		t.Fatalf("expected blob to remain pending, got %+v", pending)
	}
	results, err := st.ListResults(ctx, blob.SessionID)
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %+v", results)
	}
}

func TestReleaseExpiredLeases(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	a := submitNew(t, st, "a")
	b := submitNew(t, st, "b")

	if _, err := st.ClaimOldestPending(ctx, a.SessionID, HashLeaseToken("a"), testNow, time.Second); err != nil {
		t.Fatalf("claim a: %v", err)
	}
	if _, err := st.ClaimOldestPending(ctx, b.SessionID, HashLeaseToken("b"), testNow, time.Hour); err != nil {
		t.Fatalf("claim b: %v", err)
	}

	n, err := st.ReleaseExpiredLeases(ctx, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 released lease, got %d", n)
	}
	if _, ok, _ := st.LeaseOwner(ctx, HashLeaseToken("a")); ok {
		t.Fatal("released lease token should no longer resolve")
	}
}

func TestListJobs(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	a := submitNew(t, st, "a1")
	submitTo(t, st, a.SessionID, "a2", testNow)
	b := submitNew(t, st, "b1")
	if _, err := st.ClaimOldestPending(ctx, b.SessionID, HashLeaseToken("b"), testNow, time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}

	jobs, err := st.ListJobs(ctx, testNow, 0)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs[a.SessionID]) != 2 {
		t.Fatalf("expected 2 jobs for a, got %+v", jobs[a.SessionID])
	}
	if _, ok := jobs[b.SessionID]; ok {
		t.Fatalf("leased blob must not be listed as a job: %+v", jobs[b.SessionID])
	}

	limited, err := st.ListJobs(ctx, testNow, 1)
	if err != nil {
		t.Fatalf("list jobs limited: %v", err)
	}
	total := 0
	for _, blobs := range limited {
		total += len(blobs)
	}
	if total != 1 {
		t.Fatalf("expected 1 job with limit, got %d", total)
	}
}

func TestDeleteSession(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	blob := submitNew(t, st, "x")
	submitTo(t, st, blob.SessionID, "y", testNow)
	hash := HashLeaseToken("held")
	if _, err := st.ClaimOldestPending(ctx, blob.SessionID, hash, testNow, time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if _, err := st.DeleteSession(ctx, blob.SessionID, testNow, false); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy with an active lease, got %v", err)
	}

	if _, err := st.CompleteLease(ctx, hash, "X", testNow); err != nil {
		t.Fatalf("complete: %v", err)
	}
	stats, err := st.DeleteSession(ctx, blob.SessionID, testNow, false)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if stats.Blobs != 2 || stats.Results != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	session, err := st.GetSession(ctx, blob.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session == nil || session.Live() {
		t.Fatalf("expected tombstoned session, got %+v", session)
	}

	if _, err := st.SubmitBlob(ctx, SubmitParams{SessionID: blob.SessionID, Message: "late", Now: testNow}); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession after delete, got %v", err)
	}
	if _, err := st.SubmitBlob(ctx, SubmitParams{SessionID: blob.SessionID, Create: true, Message: "reuse", Now: testNow}); !errors.Is(err, ErrCollision) {
		t.Fatalf("expected reaped id to collide, got %v", err)
	}
	if _, err := st.DeleteSession(ctx, blob.SessionID, testNow, false); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected second delete to fail with ErrUnknownSession, got %v", err)
	}
}

func TestDeleteSessionForce(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	blob := submitNew(t, st, "x")
	hash := HashLeaseToken("held")
	if _, err := st.ClaimOldestPending(ctx, blob.SessionID, hash, testNow, time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}

	stats, err := st.DeleteSession(ctx, blob.SessionID, testNow, true)
	if err != nil {
		t.Fatalf("force delete: %v", err)
	}
	if stats.ExpiredLeases != 1 {
		t.Fatalf("expected 1 force-expired lease, got %+v", stats)
	}
	if _, err := st.CompleteLease(ctx, hash, "late", testNow); !errors.Is(err, ErrLeaseExpired) {
		t.Fatalf("expected completion after reap to fail, got %v", err)
	}
}

func TestStoreInfo(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	info, err := st.StoreInfo(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.SchemaVersion != len(migrations) {
		t.Fatalf("expected schema version %d, got %d", len(migrations), info.SchemaVersion)
	}
	if info.TotalBlobs != 0 || info.BlobCounts["pending"] != 0 {
		t.Fatalf("expected empty store, got %+v", info)
	}

	blob := submitNew(t, st, "a")
	submitTo(t, st, blob.SessionID, "b", testNow)
	if _, err := st.ClaimOldestPending(ctx, blob.SessionID, HashLeaseToken("x"), testNow, time.Minute); err != nil {
		t.Fatalf("claim: %v", err)
	}

	info, err = st.StoreInfo(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.LiveSessions != 1 || info.TotalBlobs != 2 {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.BlobCounts["pending"] != 1 || info.BlobCounts["leased"] != 1 {
		t.Fatalf("unexpected counts %+v", info.BlobCounts)
	}
}
