package jobstore

import "encoding/json"

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusClaimed    Status = "claimed"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusDeadLetter Status = "dead_letter"
)

// Terminal reports whether the status admits no further worker transitions.
// Terminal jobs are only touched again by an explicit operator requeue.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusDeadLetter
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusClaimed, StatusCompleted, StatusError, StatusDeadLetter:
		return true
	}
	return false
}

// Job is one durable record per unit of asynchronous work. It is scoped to a
// tenant and unique per (tenant, type, idempotency key).
type Job struct {
	TenantID       string          `json:"tenantId"`
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey"`

	Status      Status `json:"status"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"maxAttempts"`

	ClaimedBy        string `json:"claimedBy,omitempty"`
	ClaimExpiresAtMs int64  `json:"claimExpiresAtMs,omitempty"`
	NextEligibleAtMs int64  `json:"nextEligibleAtMs,omitempty"`

	Result    json.RawMessage `json:"result,omitempty"`
	LastError string          `json:"lastError,omitempty"`

	CreatedAtMs int64 `json:"createdAtMs"`
	UpdatedAtMs int64 `json:"updatedAtMs"`

	// Version increments on every write and is the compare-and-swap token for
	// conditional updates.
	Version uint64 `json:"version"`
}

// LeaseExpired reports whether a claimed job's lease has lapsed at nowMs.
func (j *Job) LeaseExpired(nowMs int64) bool {
	return j.Status == StatusClaimed && j.ClaimExpiresAtMs <= nowMs
}

// Claimable reports whether a worker may acquire the job at nowMs: the job is
// queued or retryable with its backoff elapsed, or its previous holder's lease
// has expired.
func (j *Job) Claimable(nowMs int64) bool {
	switch j.Status {
	case StatusQueued, StatusError:
		return j.NextEligibleAtMs <= nowMs
	case StatusClaimed:
		return j.LeaseExpired(nowMs)
	}
	return false
}

// dueAtMs returns the timestamp under which the job is indexed for the due
// scan, or -1 when it must not appear there. Claimed jobs are indexed at lease
// expiry so a lapsed lease surfaces to the next scan without any timer.
func (j *Job) dueAtMs() int64 {
	switch j.Status {
	case StatusQueued, StatusError:
		if j.NextEligibleAtMs < 0 {
			return 0
		}
		return j.NextEligibleAtMs
	case StatusClaimed:
		return j.ClaimExpiresAtMs
	}
	return -1
}

// clone returns a deep-enough copy for handing out of the store.
func (j *Job) clone() *Job {
	c := *j
	if j.Payload != nil {
		c.Payload = append(json.RawMessage(nil), j.Payload...)
	}
	if j.Result != nil {
		c.Result = append(json.RawMessage(nil), j.Result...)
	}
	return &c
}
