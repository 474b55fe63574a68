// Package audit records one append-only entry per worker invocation and per
// operator override, for operational visibility.
package audit

import (
	"context"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/nordfund/jobq/internal/jobstore"
	pebblestore "github.com/nordfund/jobq/internal/storage/pebble"
	"github.com/nordfund/jobq/pkg/id"
	"github.com/nordfund/jobq/pkg/log"
)

// Actions recorded.
const (
	ActionRun     = "run"
	ActionRequeue = "requeue"
)

// RunRecord summarizes one worker invocation or operator override.
type RunRecord struct {
	RunID     string `json:"runId"`
	TenantID  string `json:"tenantId"`
	Action    string `json:"action"`
	Principal string `json:"principal"`

	Processed int `json:"processed"`
	Success   int `json:"success"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`

	JobIDs []string `json:"jobIds,omitempty"`

	StartedAtMs int64 `json:"startedAtMs"`
	DurationMs  int64 `json:"durationMs"`
}

// Recorder writes run records. Writes are best-effort: a failed audit write is
// logged and never propagated into the processing outcome.
type Recorder struct {
	db     *pebblestore.DB
	gen    *id.Generator
	logger log.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(db *pebblestore.DB, logger log.Logger) *Recorder {
	if logger == nil {
		logger = log.Discard()
	}
	return &Recorder{db: db, gen: id.NewGenerator(), logger: logger.With(log.Component("audit"))}
}

// NewRunID returns a fresh time-sortable run id.
func (r *Recorder) NewRunID() string { return r.gen.Next().String() }

// runKey returns the record key for a run entry.
// Format: tn/{tenant}/run/{runId}. Run ids are time-sortable, so the key
// order is chronological.
func runKey(tenant, runID string) []byte {
	return []byte(fmt.Sprintf("tn/%s/run/%s", tenant, runID))
}

func runPrefix(tenant string) []byte {
	return []byte(fmt.Sprintf("tn/%s/run/", tenant))
}

// Record persists rec. Errors surface only in the log, never to the caller.
func (r *Recorder) Record(ctx context.Context, rec *RunRecord) {
	raw, err := jobstore.EncodeRecord(rec)
	if err == nil {
		err = r.db.Set(runKey(rec.TenantID, rec.RunID), raw)
	}
	if err != nil {
		r.logger.Warn("audit write failed",
			log.Str("run_id", rec.RunID),
			log.Str("tenant", rec.TenantID),
			log.Err(err))
	}
}

// List returns up to limit run records for a tenant, most recent first.
func (r *Recorder) List(ctx context.Context, tenant string, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	prefix := runPrefix(tenant)
	iter, err := r.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: jobstore.KeyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("run scan: %w", err)
	}
	defer iter.Close()

	var out []*RunRecord
	for ok := iter.Last(); ok && len(out) < limit; ok = iter.Prev() {
		var rec RunRecord
		if err := jobstore.DecodeRecord(iter.Value(), &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}
