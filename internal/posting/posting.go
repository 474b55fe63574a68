// Package posting specializes the job queue for outbound postings to an
// external bookkeeping system. It defines the voucher payload schema, the
// Poster collaborator that talks to the external ledger, and the processor
// that binds the two; the queue itself stays generic.
package posting

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nordfund/jobq/internal/jobstore"
	"github.com/nordfund/jobq/internal/queue"
)

// JobType is the job type postings are enqueued under.
const JobType = "outbound-posting"

// VoucherRow is a single booking row. Amounts are in cents to keep arithmetic
// exact end to end.
type VoucherRow struct {
	Account     string `json:"account"`
	DebitCents  int64  `json:"debitCents,omitempty"`
	CreditCents int64  `json:"creditCents,omitempty"`
	CostCenter  string `json:"costCenter,omitempty"`
}

// VoucherPayload is the payload of an outbound-posting job.
type VoucherPayload struct {
	VoucherSeries    string       `json:"voucherSeries"`
	FiscalYearID     string       `json:"fiscalYearId"`
	TransactionDate  string       `json:"transactionDate"` // YYYY-MM-DD
	Description      string       `json:"description,omitempty"`
	Rows             []VoucherRow `json:"rows"`
	SourceDocumentID string       `json:"sourceDocumentId,omitempty"`
}

// Validate checks the payload is postable: at least one row and balanced
// debit/credit totals.
func (p *VoucherPayload) Validate() error {
	if p.VoucherSeries == "" || p.FiscalYearID == "" || p.TransactionDate == "" {
		return fmt.Errorf("posting: voucherSeries, fiscalYearId and transactionDate are required")
	}
	if len(p.Rows) == 0 {
		return fmt.Errorf("posting: voucher has no rows")
	}
	var debit, credit int64
	for _, r := range p.Rows {
		if r.Account == "" {
			return fmt.Errorf("posting: row without account")
		}
		debit += r.DebitCents
		credit += r.CreditCents
	}
	if debit != credit {
		return fmt.Errorf("posting: voucher unbalanced: debit %d != credit %d", debit, credit)
	}
	return nil
}

// Result is stored in the job's result once the external ledger accepted the
// voucher.
type Result struct {
	ExternalRef string `json:"externalRef"`
}

// Poster exchanges a voucher with the external bookkeeping system. The
// idempotency key is the job's own key: the downstream call must be safe to
// repeat, because a claimed job can legitimately be re-attempted after a
// crash.
type Poster interface {
	PostVoucher(ctx context.Context, idempotencyKey string, v *VoucherPayload) (externalRef string, err error)
}

// NewProcessor returns the queue handler for outbound postings. Malformed or
// unbalanced payloads are permanent failures; poster errors are transient and
// retried by the scheduler.
func NewProcessor(p Poster) queue.Handler {
	return queue.HandlerFunc(func(ctx context.Context, job *jobstore.Job) (json.RawMessage, error) {
		var payload VoucherPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, queue.Permanent(fmt.Errorf("posting: malformed payload: %w", err))
		}
		if err := payload.Validate(); err != nil {
			return nil, queue.Permanent(err)
		}
		ref, err := p.PostVoucher(ctx, job.IdempotencyKey, &payload)
		if err != nil {
			return nil, fmt.Errorf("posting: %w", err)
		}
		return json.Marshal(Result{ExternalRef: ref})
	})
}

// Record is the posting view over a job: the generic lifecycle plus the
// external artifact reference once posting succeeded.
type Record struct {
	Job         *jobstore.Job
	Payload     VoucherPayload
	ExternalRef string
}

// RecordFromJob decodes a posting job into its specialized view.
func RecordFromJob(j *jobstore.Job) (*Record, error) {
	if j.Type != JobType {
		return nil, fmt.Errorf("posting: job %s has type %q", j.ID, j.Type)
	}
	rec := &Record{Job: j}
	if len(j.Payload) > 0 {
		if err := json.Unmarshal(j.Payload, &rec.Payload); err != nil {
			return nil, fmt.Errorf("posting: decode payload of %s: %w", j.ID, err)
		}
	}
	if len(j.Result) > 0 {
		var res Result
		if err := json.Unmarshal(j.Result, &res); err != nil {
			return nil, fmt.Errorf("posting: decode result of %s: %w", j.ID, err)
		}
		rec.ExternalRef = res.ExternalRef
	}
	return rec, nil
}
