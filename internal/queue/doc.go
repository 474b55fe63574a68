// Package queue implements the job queue core: idempotent enqueue,
// lease-based mutual exclusion, processor dispatch, retry with backoff, and
// the externally triggered worker loop.
//
// # Delivery model
//
// The queue guarantees exactly one logical job per (tenant, type, idempotency
// key) and at-least-once attempted execution. It does not guarantee
// exactly-once execution: a worker can crash between dispatching and
// settling, after which the lapsed lease makes the job claimable again.
// Handlers must therefore be idempotent downstream, typically by forwarding
// the job's idempotency key.
//
// # Scheduling model
//
// No background goroutines. RunOnce processes one bounded batch sequentially
// and returns; concurrency comes from overlapping invocations racing on the
// store's conditional writes. A claim that loses its race is a skip, not an
// error.
//
// # State machine
//
//	queued → claimed → completed            (terminal)
//	                 → error → queued       (after backoff)
//	                         → dead_letter  (attempts ≥ maxAttempts, terminal)
//	dead_letter → queued                    (operator requeue only)
//
// Out-of-order transition calls fail with a sentinel error and leave the job
// untouched.
package queue
