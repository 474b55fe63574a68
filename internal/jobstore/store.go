package jobstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/nordfund/jobq/internal/storage/pebble"
)

var (
	// ErrNotFound is returned when a job does not exist.
	ErrNotFound = errors.New("jobstore: job not found")
	// ErrConditionFailed is returned when a conditional write loses its race:
	// the record changed since the caller read it.
	ErrConditionFailed = errors.New("jobstore: condition failed")
)

// Store is the durable job ledger. Pebble offers no server-side
// compare-and-swap, so Store serializes read-check-write sequences under a
// mutex and uses the record Version as the CAS token. Pebble's exclusive
// directory lock makes the store single-process, which is what makes this
// equivalent to a conditional put.
type Store struct {
	db *pebblestore.DB
	mu sync.Mutex
}

// New creates a Store on top of an open Pebble database.
func New(db *pebblestore.DB) *Store {
	return &Store{db: db}
}

// Get loads a job by (tenant, id).
func (s *Store) Get(tenant, id string) (*Job, error) {
	return s.getLocked(tenant, id)
}

// getLocked reads a job record. Safe without the mutex for plain reads; the
// name marks that mutating paths call it while holding s.mu.
func (s *Store) getLocked(tenant, id string) (*Job, error) {
	raw, err := s.db.Get(JobKey(tenant, id))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read job %s/%s: %w", tenant, id, err)
	}
	var j Job
	if err := DecodeRecord(raw, &j); err != nil {
		return nil, fmt.Errorf("decode job %s/%s: %w", tenant, id, err)
	}
	return &j, nil
}

// GetByIdempotencyKey resolves (tenant, type, key) through the uniqueness
// index to the job it maps to.
func (s *Store) GetByIdempotencyKey(tenant, typ, key string) (*Job, error) {
	idRaw, err := s.db.Get(IdemKey(tenant, typ, key))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read idem index: %w", err)
	}
	return s.getLocked(tenant, string(idRaw))
}

// Create conditionally writes a new job. The create succeeds only when no job
// with the same (tenant, type, idempotency key) exists; otherwise the existing
// job is returned with created=false. The record and both index entries are
// committed in one batch.
func (s *Store) Create(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.TenantID == "" || job.ID == "" || job.Type == "" || job.IdempotencyKey == "" {
		return nil, false, errors.New("jobstore: tenant, id, type and idempotency key are required")
	}
	if job.Status != StatusQueued {
		return nil, false, fmt.Errorf("jobstore: new job must be queued, got %q", job.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idemKey := IdemKey(job.TenantID, job.Type, job.IdempotencyKey)
	if idRaw, err := s.db.Get(idemKey); err == nil {
		existing, err := s.getLocked(job.TenantID, string(idRaw))
		if err != nil {
			return nil, false, fmt.Errorf("resolve existing job for key %q: %w", job.IdempotencyKey, err)
		}
		return existing, false, nil
	} else if !errors.Is(err, pebblestore.ErrNotFound) {
		return nil, false, fmt.Errorf("probe idem index: %w", err)
	}

	j := job.clone()
	j.Version = 1
	if j.NextEligibleAtMs <= 0 {
		j.NextEligibleAtMs = j.CreatedAtMs
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := s.writeJob(b, j); err != nil {
		return nil, false, err
	}
	if err := b.Set(idemKey, []byte(j.ID), nil); err != nil {
		return nil, false, err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return nil, false, fmt.Errorf("commit create: %w", err)
	}
	return j.clone(), true, nil
}

// Update conditionally replaces a job record. It succeeds only when the stored
// Version equals expectVersion; concurrent writers race on this check and
// exactly one wins. Index entries are moved in the same batch.
func (s *Store) Update(ctx context.Context, job *Job, expectVersion uint64) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.getLocked(job.TenantID, job.ID)
	if err != nil {
		return nil, err
	}
	if cur.Version != expectVersion {
		return nil, ErrConditionFailed
	}

	j := job.clone()
	j.Version = expectVersion + 1

	b := s.db.NewBatch()
	defer b.Close()

	// Move the due index entry if its position changed.
	oldDue, newDue := cur.dueAtMs(), j.dueAtMs()
	if oldDue >= 0 && (newDue != oldDue || newDue < 0) {
		if err := b.Delete(DueKey(j.TenantID, oldDue, j.ID), nil); err != nil {
			return nil, err
		}
	}

	// Dead-letter index follows the status.
	if cur.Status == StatusDeadLetter && j.Status != StatusDeadLetter {
		if err := b.Delete(DLQKey(j.TenantID, j.ID), nil); err != nil {
			return nil, err
		}
	}
	if cur.Status != StatusDeadLetter && j.Status == StatusDeadLetter {
		if err := b.Set(DLQKey(j.TenantID, j.ID), nil, nil); err != nil {
			return nil, err
		}
	}

	if err := s.writeJob(b, j); err != nil {
		return nil, err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return j.clone(), nil
}

// writeJob stages the record write plus its due index entry into b.
func (s *Store) writeJob(b *pebble.Batch, j *Job) error {
	raw, err := EncodeRecord(j)
	if err != nil {
		return fmt.Errorf("encode job %s/%s: %w", j.TenantID, j.ID, err)
	}
	if err := b.Set(JobKey(j.TenantID, j.ID), raw, nil); err != nil {
		return err
	}
	if at := j.dueAtMs(); at >= 0 {
		if err := b.Set(DueKey(j.TenantID, at, j.ID), nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// ListDue returns up to limit jobs whose due-index position is at or before
// nowMs, oldest first. The result covers queued and retryable jobs whose
// backoff elapsed, plus claimed jobs whose lease already lapsed.
func (s *Store) ListDue(ctx context.Context, tenant string, nowMs int64, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}
	prefix := DuePrefix(tenant)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: KeyUpperBound(prefix)})
	if err != nil {
		return nil, fmt.Errorf("due scan: %w", err)
	}
	defer iter.Close()

	var jobs []*Job
	for ok := iter.First(); ok && len(jobs) < limit; ok = iter.Next() {
		atMs, id, parsed := ParseDueKey(tenant, iter.Key())
		if !parsed {
			continue
		}
		if atMs > nowMs {
			break
		}
		j, err := s.getLocked(tenant, id)
		if err != nil {
			// Stale index entry; skip it here, the next update rewrites indexes.
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// List scans a tenant's jobs, optionally filtered by status. Intended for
// operator tooling, so it walks the record space rather than an index.
func (s *Store) List(ctx context.Context, tenant string, status Status, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}
	prefix := JobPrefix(tenant)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: KeyUpperBound(prefix)})
	if err != nil {
		return nil, fmt.Errorf("job scan: %w", err)
	}
	defer iter.Close()

	var jobs []*Job
	for ok := iter.First(); ok && len(jobs) < limit; ok = iter.Next() {
		var j Job
		if err := DecodeRecord(iter.Value(), &j); err != nil {
			continue
		}
		if status != "" && j.Status != status {
			continue
		}
		jobs = append(jobs, j.clone())
	}
	return jobs, nil
}

// ListDeadLetter returns up to limit dead-lettered jobs of a tenant.
func (s *Store) ListDeadLetter(ctx context.Context, tenant string, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}
	prefix := DLQPrefix(tenant)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: KeyUpperBound(prefix)})
	if err != nil {
		return nil, fmt.Errorf("dlq scan: %w", err)
	}
	defer iter.Close()

	var jobs []*Job
	for ok := iter.First(); ok && len(jobs) < limit; ok = iter.Next() {
		id := string(iter.Key()[len(prefix):])
		j, err := s.getLocked(tenant, id)
		if err != nil {
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}
