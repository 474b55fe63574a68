package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nordfund/jobq/internal/audit"
	"github.com/nordfund/jobq/internal/jobstore"
	pebblestore "github.com/nordfund/jobq/internal/storage/pebble"
	"github.com/nordfund/jobq/pkg/log"
)

func newTestService(t *testing.T, opts Options) (*Service, *audit.Recorder) {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	rec := audit.NewRecorder(db, log.Discard())
	return New(jobstore.New(db), NewRegistry(), rec, log.Discard(), opts), rec
}

func TestEnqueueDedup(t *testing.T) {
	s, _ := newTestService(t, Options{})
	ctx := context.Background()

	j1, deduped, err := s.Enqueue(ctx, "acme", "inbound-event", []byte(`{"n":1}`), "evt-1", 1000)
	if err != nil || deduped {
		t.Fatalf("first enqueue: %v deduped=%v", err, deduped)
	}
	j2, deduped, err := s.Enqueue(ctx, "acme", "inbound-event", []byte(`{"n":1}`), "evt-1", 2000)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if !deduped || j2.ID != j1.ID {
		t.Fatalf("expected dedup to the first job, got deduped=%v id=%s", deduped, j2.ID)
	}

	jobs, err := s.List(ctx, "acme", "", "", 10)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("exactly one job must exist, got %d (%v)", len(jobs), err)
	}
}

func TestEnqueueContentKey(t *testing.T) {
	s, _ := newTestService(t, Options{})
	ctx := context.Background()

	// No caller key: byte-identical payloads collapse to one job.
	_, deduped, err := s.Enqueue(ctx, "acme", "inbound-event", []byte(`{"event":"paid"}`), "", 1000)
	if err != nil || deduped {
		t.Fatalf("first: %v %v", err, deduped)
	}
	_, deduped, err = s.Enqueue(ctx, "acme", "inbound-event", []byte(`{"event":"paid"}`), "", 2000)
	if err != nil || !deduped {
		t.Fatalf("redelivery must dedup: %v deduped=%v", err, deduped)
	}
}

func TestClaimMutualExclusion(t *testing.T) {
	s, _ := newTestService(t, Options{})
	ctx := context.Background()

	j, _, _ := s.Enqueue(ctx, "acme", "inbound-event", nil, "evt-1", 1000)

	_, granted, err := s.Claim(ctx, "acme", j.ID, "w1", 60_000, 2000)
	if err != nil || !granted {
		t.Fatalf("first claim: %v granted=%v", err, granted)
	}
	// Second owner before lease expiry.
	_, granted, err = s.Claim(ctx, "acme", j.ID, "w2", 60_000, 3000)
	if err != nil || granted {
		t.Fatalf("second claim must be denied: %v granted=%v", err, granted)
	}
	// After the lease lapses the job is claimable again.
	claimed, granted, err := s.Claim(ctx, "acme", j.ID, "w2", 60_000, 63_000)
	if err != nil || !granted {
		t.Fatalf("claim after expiry: %v granted=%v", err, granted)
	}
	if claimed.ClaimedBy != "w2" {
		t.Fatalf("lease holder should be w2, got %s", claimed.ClaimedBy)
	}
}

func TestCompleteRequiresOwner(t *testing.T) {
	s, _ := newTestService(t, Options{})
	ctx := context.Background()

	j, _, _ := s.Enqueue(ctx, "acme", "inbound-event", nil, "evt-1", 1000)
	if _, _, err := s.Claim(ctx, "acme", j.ID, "w1", 60_000, 2000); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if _, err := s.Complete(ctx, "acme", j.ID, "w2", nil, 3000); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("foreign complete must fail with ErrNotOwner, got %v", err)
	}
	done, err := s.Complete(ctx, "acme", j.ID, "w1", json.RawMessage(`{"ok":true}`), 3000)
	if err != nil || done.Status != jobstore.StatusCompleted {
		t.Fatalf("owner complete: %v %+v", err, done)
	}
	// Duplicate complete is a reported no-op.
	if _, err := s.Complete(ctx, "acme", j.ID, "w1", nil, 4000); !errors.Is(err, ErrTerminal) {
		t.Fatalf("duplicate complete must fail with ErrTerminal, got %v", err)
	}
}

func TestFailSchedulesBackoff(t *testing.T) {
	s, _ := newTestService(t, Options{DefaultMaxAttempts: 3, Backoff: BackoffPolicy{BaseMs: 1000, CapMs: 60_000}})
	ctx := context.Background()

	j, _, _ := s.Enqueue(ctx, "acme", "inbound-event", nil, "evt-1", 1000)
	_, _, _ = s.Claim(ctx, "acme", j.ID, "w1", 60_000, 2000)

	failed, err := s.Fail(ctx, "acme", j.ID, "w1", errors.New("ledger 503"), 2000)
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if failed.Status != jobstore.StatusError || failed.Attempts != 1 {
		t.Fatalf("want error/1, got %s/%d", failed.Status, failed.Attempts)
	}
	if failed.NextEligibleAtMs != 3000 {
		t.Fatalf("backoff for attempt 1 should land at 3000, got %d", failed.NextEligibleAtMs)
	}
	// Not claimable until the backoff elapses.
	if _, granted, _ := s.Claim(ctx, "acme", j.ID, "w1", 60_000, 2500); granted {
		t.Fatalf("claim before backoff elapsed must be denied")
	}
	if _, granted, _ := s.Claim(ctx, "acme", j.ID, "w1", 60_000, 3000); !granted {
		t.Fatalf("claim after backoff elapsed must succeed")
	}
}

func TestEscalationAtMaxAttempts(t *testing.T) {
	s, _ := newTestService(t, Options{DefaultMaxAttempts: 3, Backoff: BackoffPolicy{BaseMs: 1000, CapMs: 60_000}})
	ctx := context.Background()

	j, _, _ := s.Enqueue(ctx, "acme", "inbound-event", nil, "evt-1", 1000)
	now := int64(2000)
	var last *jobstore.Job
	for i := 0; i < 3; i++ {
		_, granted, err := s.Claim(ctx, "acme", j.ID, "w1", 60_000, now)
		if err != nil || !granted {
			t.Fatalf("claim %d: %v granted=%v", i, err, granted)
		}
		last, err = s.Fail(ctx, "acme", j.ID, "w1", errors.New("boom"), now)
		if err != nil {
			t.Fatalf("fail %d: %v", i, err)
		}
		now = last.NextEligibleAtMs + 1
	}
	if last.Status != jobstore.StatusDeadLetter || last.Attempts != 3 {
		t.Fatalf("want dead_letter/3, got %s/%d", last.Status, last.Attempts)
	}
	// Terminal: no further claims.
	if _, granted, _ := s.Claim(ctx, "acme", j.ID, "w1", 60_000, now+999_999); granted {
		t.Fatalf("dead-lettered job must not be claimable")
	}
}

func TestPermanentFailureSkipsRetryBudget(t *testing.T) {
	s, _ := newTestService(t, Options{DefaultMaxAttempts: 5})
	ctx := context.Background()

	j, _, _ := s.Enqueue(ctx, "acme", "inbound-event", []byte(`not json payload`), "evt-1", 1000)
	_, _, _ = s.Claim(ctx, "acme", j.ID, "w1", 60_000, 2000)
	settled, err := s.Fail(ctx, "acme", j.ID, "w1", Permanent(errors.New("malformed payload")), 2000)
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if settled.Status != jobstore.StatusDeadLetter || settled.Attempts != 1 {
		t.Fatalf("permanent failure must dead-letter on first attempt, got %s/%d", settled.Status, settled.Attempts)
	}
}

func TestRequeueKeepsAttempts(t *testing.T) {
	s, rec := newTestService(t, Options{DefaultMaxAttempts: 1})
	ctx := context.Background()

	j, _, _ := s.Enqueue(ctx, "acme", "inbound-event", nil, "evt-1", 1000)
	_, _, _ = s.Claim(ctx, "acme", j.ID, "w1", 60_000, 2000)
	dead, _ := s.Fail(ctx, "acme", j.ID, "w1", errors.New("boom"), 2000)
	if dead.Status != jobstore.StatusDeadLetter {
		t.Fatalf("setup: want dead_letter, got %s", dead.Status)
	}

	re, err := s.Requeue(ctx, "acme", j.ID, "ops@nordfund", 3000)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if re.Status != jobstore.StatusQueued || re.Attempts != 1 {
		t.Fatalf("requeue must keep attempts, got %s/%d", re.Status, re.Attempts)
	}

	// Requeue of a queued job is rejected.
	if _, err := s.Requeue(ctx, "acme", j.ID, "ops@nordfund", 4000); !errors.Is(err, ErrNotRequeueable) {
		t.Fatalf("want ErrNotRequeueable, got %v", err)
	}

	// The override itself is audited.
	recs, err := rec.List(ctx, "acme", 10)
	if err != nil || len(recs) == 0 {
		t.Fatalf("audit list: %v %d", err, len(recs))
	}
	if recs[0].Action != audit.ActionRequeue || recs[0].Principal != "ops@nordfund" {
		t.Fatalf("requeue audit entry wrong: %+v", recs[0])
	}
}

func TestAttemptsMonotone(t *testing.T) {
	s, _ := newTestService(t, Options{DefaultMaxAttempts: 4, Backoff: BackoffPolicy{BaseMs: 10, CapMs: 100}})
	ctx := context.Background()

	j, _, _ := s.Enqueue(ctx, "acme", "inbound-event", nil, "evt-1", 1000)
	now := int64(2000)
	prev := 0
	for i := 0; i < 4; i++ {
		_, granted, _ := s.Claim(ctx, "acme", j.ID, "w1", 60_000, now)
		if !granted {
			t.Fatalf("claim %d not granted", i)
		}
		settled, err := s.Fail(ctx, "acme", j.ID, "w1", errors.New("x"), now)
		if err != nil {
			t.Fatalf("fail %d: %v", i, err)
		}
		if settled.Attempts < prev {
			t.Fatalf("attempts decreased: %d -> %d", prev, settled.Attempts)
		}
		prev = settled.Attempts
		now = settled.NextEligibleAtMs + 1
	}
}
