// Package jobstore implements the durable job ledger: one record per unit of
// asynchronous work, keyed by (tenant, id), with conditional writes standing
// in for locks.
//
// # Keyspace
//
// All keys are prefixed with tn/{tenant}/:
//
//	job/{id}               - framed Job record (JSON body + CRC32C trailer)
//	idem/{type}/{key}      - idempotency uniqueness index → job id
//	due/{at_ms}/{id}       - time-ordered scan index for claimable work
//	dlq/{id}               - dead-letter index
//
// # Concurrency
//
// The store offers two conditional operations. Create succeeds only when the
// (tenant, type, idempotency key) triple is unused, which makes enqueue
// idempotent. Update succeeds only when the caller's Version matches the
// stored record, which makes claim acquisition a compare-and-swap: concurrent
// claims race on the version check and exactly one wins.
//
// # Due index
//
// Non-terminal jobs always carry exactly one due entry: queued/error jobs at
// their next-eligible time, claimed jobs at their lease expiry. A crashed
// worker's job therefore reappears in the due scan as soon as its lease
// lapses, without any active timer.
package jobstore
