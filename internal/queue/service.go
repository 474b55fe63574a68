package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nordfund/jobq/internal/audit"
	"github.com/nordfund/jobq/internal/idempotency"
	"github.com/nordfund/jobq/internal/jobstore"
	"github.com/nordfund/jobq/pkg/id"
	"github.com/nordfund/jobq/pkg/log"
)

var (
	// ErrNotClaimable is returned when a claim or settle call finds the job in
	// a state the transition does not start from. The job is left untouched.
	ErrNotClaimable = errors.New("queue: job not in a claimable state")
	// ErrNotOwner is returned when a settle call does not come from the
	// current lease holder.
	ErrNotOwner = errors.New("queue: job not claimed by this owner")
	// ErrTerminal is returned for transitions attempted on completed or
	// dead-lettered jobs.
	ErrTerminal = errors.New("queue: job is terminal")
	// ErrNotRequeueable is returned when requeue is called on a job that is
	// neither dead-lettered nor stuck in a claimed state.
	ErrNotRequeueable = errors.New("queue: job not requeueable")
)

// Options configures queue defaults applied when a caller passes zero values.
type Options struct {
	DefaultMaxAttempts int
	DefaultLeaseMs     int64
	Backoff            BackoffPolicy
}

// Service implements the queue core: idempotent enqueue, lease-based claims,
// outcome settlement with backoff, and the externally triggered worker loop.
type Service struct {
	store    *jobstore.Store
	registry *Registry
	auditor  *audit.Recorder
	logger   log.Logger
	ids      *id.Generator

	maxAttempts int
	leaseMs     int64
	backoff     BackoffPolicy
}

// New creates a Service.
func New(store *jobstore.Store, registry *Registry, auditor *audit.Recorder, logger log.Logger, opts Options) *Service {
	if logger == nil {
		logger = log.Discard()
	}
	if opts.DefaultMaxAttempts <= 0 {
		opts.DefaultMaxAttempts = 5
	}
	if opts.DefaultLeaseMs <= 0 {
		opts.DefaultLeaseMs = 120_000
	}
	return &Service{
		store:       store,
		registry:    registry,
		auditor:     auditor,
		logger:      logger.With(log.Component("queue")),
		ids:         id.NewGenerator(),
		maxAttempts: opts.DefaultMaxAttempts,
		leaseMs:     opts.DefaultLeaseMs,
		backoff:     opts.Backoff,
	}
}

// Registry exposes the processor registry for handler registration.
func (s *Service) Registry() *Registry { return s.registry }

func nowOr(nowMs int64) int64 {
	if nowMs <= 0 {
		return time.Now().UnixMilli()
	}
	return nowMs
}

// Enqueue records a new job, deduplicating by idempotency key. deduped is true
// when a job with the same (tenant, type, key) already existed; the existing
// job is then returned unchanged. No processor runs here.
func (s *Service) Enqueue(ctx context.Context, tenant, jobType string, payload json.RawMessage, idemKey string, nowMs int64) (*jobstore.Job, bool, error) {
	if tenant == "" || jobType == "" {
		return nil, false, errors.New("queue: tenant and type are required")
	}
	now := nowOr(nowMs)
	job := &jobstore.Job{
		TenantID:         tenant,
		ID:               s.ids.Next().String(),
		Type:             jobType,
		Payload:          payload,
		IdempotencyKey:   idempotency.Derive(idemKey, payload),
		Status:           jobstore.StatusQueued,
		MaxAttempts:      s.maxAttempts,
		NextEligibleAtMs: now,
		CreatedAtMs:      now,
		UpdatedAtMs:      now,
	}
	stored, created, err := s.store.Create(ctx, job)
	if err != nil {
		return nil, false, err
	}
	if !created {
		s.logger.Debug("enqueue deduped",
			log.Str("tenant", tenant),
			log.Str("type", jobType),
			log.Str("job_id", stored.ID))
	}
	return stored, !created, nil
}

// Claim attempts to acquire a lease on a job for owner. granted is false when
// the job is not claimable or another claimant won the conditional write; the
// caller must skip the job in that case.
func (s *Service) Claim(ctx context.Context, tenant, jobID, owner string, leaseMs, nowMs int64) (*jobstore.Job, bool, error) {
	if leaseMs <= 0 {
		leaseMs = s.leaseMs
	}
	now := nowOr(nowMs)

	job, err := s.store.Get(tenant, jobID)
	if err != nil {
		return nil, false, err
	}
	if !job.Claimable(now) {
		return nil, false, nil
	}

	c := *job
	c.Status = jobstore.StatusClaimed
	c.ClaimedBy = owner
	c.ClaimExpiresAtMs = now + leaseMs
	c.UpdatedAtMs = now
	claimed, err := s.store.Update(ctx, &c, job.Version)
	if err != nil {
		if errors.Is(err, jobstore.ErrConditionFailed) {
			// Lost the race to a concurrent claimant.
			return nil, false, nil
		}
		return nil, false, err
	}
	return claimed, true, nil
}

// Complete settles a claimed job as successful and stores its result. Calls
// from anyone but the current lease holder, or on a job not in claimed state,
// fail without mutating anything.
func (s *Service) Complete(ctx context.Context, tenant, jobID, owner string, result json.RawMessage, nowMs int64) (*jobstore.Job, error) {
	now := nowOr(nowMs)
	job, err := s.store.Get(tenant, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, ErrTerminal
	}
	if job.Status != jobstore.StatusClaimed {
		return nil, ErrNotClaimable
	}
	if job.ClaimedBy != owner {
		return nil, ErrNotOwner
	}

	c := *job
	c.Status = jobstore.StatusCompleted
	c.Result = result
	c.ClaimedBy = ""
	c.ClaimExpiresAtMs = 0
	c.UpdatedAtMs = now
	return s.store.Update(ctx, &c, job.Version)
}

// Fail settles a claimed job as failed. Attempts increments; a permanent
// failure or an exhausted retry budget escalates to dead_letter, otherwise the
// job returns to the retryable error state with its backoff applied.
func (s *Service) Fail(ctx context.Context, tenant, jobID, owner string, procErr error, nowMs int64) (*jobstore.Job, error) {
	now := nowOr(nowMs)
	job, err := s.store.Get(tenant, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, ErrTerminal
	}
	if job.Status != jobstore.StatusClaimed {
		return nil, ErrNotClaimable
	}
	if job.ClaimedBy != owner {
		return nil, ErrNotOwner
	}

	c := *job
	c.Attempts = job.Attempts + 1
	c.LastError = procErr.Error()
	c.ClaimedBy = ""
	c.ClaimExpiresAtMs = 0
	c.UpdatedAtMs = now

	switch {
	case IsPermanent(procErr), c.Attempts >= c.MaxAttempts:
		c.Status = jobstore.StatusDeadLetter
		c.NextEligibleAtMs = 0
	default:
		c.Status = jobstore.StatusError
		c.NextEligibleAtMs = now + s.backoff.DelayMs(c.Attempts)
	}

	settled, err := s.store.Update(ctx, &c, job.Version)
	if err != nil {
		return nil, err
	}
	if settled.Status == jobstore.StatusDeadLetter {
		s.logger.Warn("job dead-lettered",
			log.Str("tenant", tenant),
			log.Str("job_id", jobID),
			log.Int("attempts", settled.Attempts),
			log.Str("error", settled.LastError))
	}
	return settled, nil
}

// Requeue is the audited operator override: it returns a dead-lettered job, or
// a stuck claimed job, to the queue without resetting attempts. principal is
// recorded in the audit trail.
func (s *Service) Requeue(ctx context.Context, tenant, jobID, principal string, nowMs int64) (*jobstore.Job, error) {
	now := nowOr(nowMs)
	job, err := s.store.Get(tenant, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != jobstore.StatusDeadLetter && job.Status != jobstore.StatusClaimed {
		return nil, fmt.Errorf("%w: status %q", ErrNotRequeueable, job.Status)
	}

	c := *job
	c.Status = jobstore.StatusQueued
	c.ClaimedBy = ""
	c.ClaimExpiresAtMs = 0
	c.NextEligibleAtMs = now
	c.UpdatedAtMs = now
	requeued, err := s.store.Update(ctx, &c, job.Version)
	if err != nil {
		return nil, err
	}

	if s.auditor != nil {
		s.auditor.Record(ctx, &audit.RunRecord{
			RunID:       s.auditor.NewRunID(),
			TenantID:    tenant,
			Action:      audit.ActionRequeue,
			Principal:   principal,
			JobIDs:      []string{jobID},
			StartedAtMs: now,
		})
	}
	s.logger.Info("job requeued by operator",
		log.Str("tenant", tenant),
		log.Str("job_id", jobID),
		log.Str("principal", principal))
	return requeued, nil
}

// Get loads a single job.
func (s *Service) Get(ctx context.Context, tenant, jobID string) (*jobstore.Job, error) {
	return s.store.Get(tenant, jobID)
}

// List returns jobs of a tenant, optionally filtered by status and by a CEL
// expression (see Filter).
func (s *Service) List(ctx context.Context, tenant string, status jobstore.Status, filterExpr string, limit int) ([]*jobstore.Job, error) {
	f, err := NewFilter(filterExpr)
	if err != nil {
		return nil, err
	}
	jobs, err := s.store.List(ctx, tenant, status, limit)
	if err != nil {
		return nil, err
	}
	if !f.Enabled() {
		return jobs, nil
	}
	out := jobs[:0]
	now := nowOr(0)
	for _, j := range jobs {
		if f.Eval(j, now) {
			out = append(out, j)
		}
	}
	return out, nil
}

// ListDeadLetter returns a tenant's dead-lettered jobs.
func (s *Service) ListDeadLetter(ctx context.Context, tenant string, limit int) ([]*jobstore.Job, error) {
	return s.store.ListDeadLetter(ctx, tenant, limit)
}
