package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nordfund/jobq/internal/audit"
	"github.com/nordfund/jobq/internal/jobstore"
	"github.com/nordfund/jobq/pkg/log"
)

// JobResult is the per-job outcome of one worker pass.
type JobResult struct {
	JobID  string          `json:"jobId"`
	Status jobstore.Status `json:"status"`
	Error  string          `json:"error,omitempty"`
}

// RunSummary aggregates one worker invocation.
type RunSummary struct {
	RunID     string      `json:"runId"`
	Processed int         `json:"processed"`
	Success   int         `json:"success"`
	Failed    int         `json:"failed"`
	Skipped   int         `json:"skipped"`
	Results   []JobResult `json:"results"`
}

// RunOnce executes one bounded worker pass for a tenant: list due jobs oldest
// first, claim each, dispatch, settle. Jobs another invocation claimed first
// are counted as skipped; a failure inside one job never aborts the batch.
// principal names who triggered the pass and lands in the audit record. The
// call is safe to re-invoke concurrently: overlapping passes race on claims.
func (s *Service) RunOnce(ctx context.Context, tenant string, limit int, principal string, nowMs int64) (*RunSummary, error) {
	now := nowOr(nowMs)
	start := time.Now()
	if limit <= 0 {
		limit = 50
	}
	owner := "worker-" + uuid.NewString()

	due, err := s.store.ListDue(ctx, tenant, now, limit)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{RunID: s.auditRunID()}
	var touched []string
	for _, job := range due {
		touched = append(touched, job.ID)
		res := s.runJob(ctx, tenant, job, owner, now)
		if res == nil {
			summary.Skipped++
			continue
		}
		summary.Processed++
		if res.Error == "" {
			summary.Success++
		} else {
			summary.Failed++
		}
		summary.Results = append(summary.Results, *res)
	}

	s.logger.Info("worker pass finished",
		log.Str("tenant", tenant),
		log.Str("run_id", summary.RunID),
		log.Str("principal", principal),
		log.Int("processed", summary.Processed),
		log.Int("success", summary.Success),
		log.Int("failed", summary.Failed),
		log.Int("skipped", summary.Skipped))

	if s.auditor != nil {
		s.auditor.Record(ctx, &audit.RunRecord{
			RunID:       summary.RunID,
			TenantID:    tenant,
			Action:      audit.ActionRun,
			Principal:   principal,
			Processed:   summary.Processed,
			Success:     summary.Success,
			Failed:      summary.Failed,
			Skipped:     summary.Skipped,
			JobIDs:      touched,
			StartedAtMs: now,
			DurationMs:  time.Since(start).Milliseconds(),
		})
	}
	return summary, nil
}

func (s *Service) auditRunID() string {
	if s.auditor != nil {
		return s.auditor.NewRunID()
	}
	return s.ids.Next().String()
}

// runJob claims, dispatches, and settles a single candidate. A nil result
// means the claim was not granted and the job was skipped.
func (s *Service) runJob(ctx context.Context, tenant string, job *jobstore.Job, owner string, nowMs int64) *JobResult {
	claimed, granted, err := s.Claim(ctx, tenant, job.ID, owner, s.leaseMs, nowMs)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			return nil
		}
		return &JobResult{JobID: job.ID, Status: job.Status, Error: err.Error()}
	}
	if !granted {
		return nil
	}

	result, procErr := s.registry.Dispatch(ctx, claimed)
	if procErr == nil {
		done, err := s.Complete(ctx, tenant, job.ID, owner, result, nowMs)
		if err != nil {
			// The lease was lost mid-flight; the job will be re-attempted and
			// the processor's idempotency absorbs the duplicate effect.
			s.logger.Warn("complete failed after dispatch",
				log.Str("tenant", tenant), log.Str("job_id", job.ID), log.Err(err))
			return &JobResult{JobID: job.ID, Status: claimed.Status, Error: err.Error()}
		}
		return &JobResult{JobID: job.ID, Status: done.Status}
	}

	settled, err := s.Fail(ctx, tenant, job.ID, owner, procErr, nowMs)
	if err != nil {
		s.logger.Warn("fail settlement failed",
			log.Str("tenant", tenant), log.Str("job_id", job.ID), log.Err(err))
		return &JobResult{JobID: job.ID, Status: claimed.Status, Error: procErr.Error()}
	}
	return &JobResult{JobID: job.ID, Status: settled.Status, Error: settled.LastError}
}
