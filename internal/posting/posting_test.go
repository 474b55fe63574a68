package posting

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nordfund/jobq/internal/audit"
	"github.com/nordfund/jobq/internal/jobstore"
	"github.com/nordfund/jobq/internal/queue"
	pebblestore "github.com/nordfund/jobq/internal/storage/pebble"
	"github.com/nordfund/jobq/pkg/log"
)

type fakePoster struct {
	calls map[string]int // idempotency key → call count
	fail  error
}

func (f *fakePoster) PostVoucher(ctx context.Context, key string, v *VoucherPayload) (string, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[key]++
	if f.fail != nil {
		return "", f.fail
	}
	return "FNX-" + key, nil
}

func newPostingService(t *testing.T, p Poster) *queue.Service {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s := queue.New(jobstore.New(db), queue.NewRegistry(), audit.NewRecorder(db, log.Discard()), log.Discard(),
		queue.Options{DefaultMaxAttempts: 3, Backoff: queue.BackoffPolicy{BaseMs: 1000, CapMs: 10_000}})
	s.Registry().Register(JobType, NewProcessor(p))
	return s
}

func balancedPayload() []byte {
	b, _ := json.Marshal(VoucherPayload{
		VoucherSeries:   "A",
		FiscalYearID:    "2026",
		TransactionDate: "2026-08-30",
		Description:     "Management fee Q3",
		Rows: []VoucherRow{
			{Account: "1930", CreditCents: 125_000},
			{Account: "6420", DebitCents: 125_000},
		},
		SourceDocumentID: "doc-77",
	})
	return b
}

func TestPostingCapturesExternalRef(t *testing.T) {
	poster := &fakePoster{}
	s := newPostingService(t, poster)
	ctx := context.Background()

	j, _, err := s.Enqueue(ctx, "acme", JobType, balancedPayload(), "voucher-77", 1000)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := s.RunOnce(ctx, "acme", 10, "timer", 2000); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, _ := s.Get(ctx, "acme", j.ID)
	rec, err := RecordFromJob(got)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.ExternalRef != "FNX-voucher-77" {
		t.Fatalf("external ref not captured: %q", rec.ExternalRef)
	}
	if rec.Payload.VoucherSeries != "A" || len(rec.Payload.Rows) != 2 {
		t.Fatalf("payload view wrong: %+v", rec.Payload)
	}
	if poster.calls["voucher-77"] != 1 {
		t.Fatalf("poster called %d times", poster.calls["voucher-77"])
	}
}

func TestPosterIdempotencyKeyForwarded(t *testing.T) {
	poster := &fakePoster{}
	s := newPostingService(t, poster)
	ctx := context.Background()

	// Duplicate enqueue collapses, so the poster sees the key exactly once.
	_, _, _ = s.Enqueue(ctx, "acme", JobType, balancedPayload(), "voucher-1", 1000)
	_, deduped, _ := s.Enqueue(ctx, "acme", JobType, balancedPayload(), "voucher-1", 1500)
	if !deduped {
		t.Fatalf("expected dedup")
	}
	if _, err := s.RunOnce(ctx, "acme", 10, "timer", 2000); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(poster.calls) != 1 || poster.calls["voucher-1"] != 1 {
		t.Fatalf("poster calls: %+v", poster.calls)
	}
}

func TestTransientPosterErrorRetries(t *testing.T) {
	poster := &fakePoster{fail: errors.New("fortnox 502")}
	s := newPostingService(t, poster)
	ctx := context.Background()

	j, _, _ := s.Enqueue(ctx, "acme", JobType, balancedPayload(), "voucher-2", 1000)
	if _, err := s.RunOnce(ctx, "acme", 10, "timer", 2000); err != nil {
		t.Fatalf("run: %v", err)
	}
	got, _ := s.Get(ctx, "acme", j.ID)
	if got.Status != jobstore.StatusError || got.Attempts != 1 {
		t.Fatalf("transient failure must be retryable: %s/%d", got.Status, got.Attempts)
	}

	// Downstream recovers; the retry succeeds once backoff elapses.
	poster.fail = nil
	if _, err := s.RunOnce(ctx, "acme", 10, "timer", got.NextEligibleAtMs+1); err != nil {
		t.Fatalf("retry run: %v", err)
	}
	got, _ = s.Get(ctx, "acme", j.ID)
	if got.Status != jobstore.StatusCompleted {
		t.Fatalf("retry should complete, got %s", got.Status)
	}
	if poster.calls["voucher-2"] != 2 {
		t.Fatalf("poster should be called per attempt, got %d", poster.calls["voucher-2"])
	}
}

func TestUnbalancedVoucherIsPermanent(t *testing.T) {
	poster := &fakePoster{}
	s := newPostingService(t, poster)
	ctx := context.Background()

	bad, _ := json.Marshal(VoucherPayload{
		VoucherSeries:   "A",
		FiscalYearID:    "2026",
		TransactionDate: "2026-08-30",
		Rows:            []VoucherRow{{Account: "1930", DebitCents: 100}},
	})
	j, _, _ := s.Enqueue(ctx, "acme", JobType, bad, "voucher-3", 1000)
	if _, err := s.RunOnce(ctx, "acme", 10, "timer", 2000); err != nil {
		t.Fatalf("run: %v", err)
	}
	got, _ := s.Get(ctx, "acme", j.ID)
	if got.Status != jobstore.StatusDeadLetter || got.Attempts != 1 {
		t.Fatalf("unbalanced voucher must dead-letter immediately: %s/%d", got.Status, got.Attempts)
	}
	if len(poster.calls) != 0 {
		t.Fatalf("poster must not be called for invalid payloads")
	}
}

func TestMalformedPayloadIsPermanent(t *testing.T) {
	s := newPostingService(t, &fakePoster{})
	ctx := context.Background()

	j, _, _ := s.Enqueue(ctx, "acme", JobType, []byte(`{{not json`), "voucher-4", 1000)
	if _, err := s.RunOnce(ctx, "acme", 10, "timer", 2000); err != nil {
		t.Fatalf("run: %v", err)
	}
	got, _ := s.Get(ctx, "acme", j.ID)
	if got.Status != jobstore.StatusDeadLetter {
		t.Fatalf("malformed payload must dead-letter, got %s", got.Status)
	}
}

func TestRecordFromJobRejectsOtherTypes(t *testing.T) {
	if _, err := RecordFromJob(&jobstore.Job{ID: "x", Type: "inbound-event"}); err == nil {
		t.Fatalf("expected type mismatch error")
	}
}
