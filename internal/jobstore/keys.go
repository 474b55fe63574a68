package jobstore

import (
	"encoding/binary"
	"fmt"
)

// Keyspace, all rooted at tn/{tenant}/:
//
//	job/{id}              - framed Job record
//	idem/{type}/{key}     - idempotency uniqueness index → job id
//	due/{at_ms:8B BE}/{id} - time-ordered claimable scan index
//	dlq/{id}              - dead-letter index
//
// Index entries are maintained in the same batch as the record write, so a
// record and its indexes never diverge.

const (
	prefixJob  = "job/"
	prefixIdem = "idem/"
	prefixDue  = "due/"
	prefixDLQ  = "dlq/"
)

// tenantPrefix returns the base prefix for a tenant.
// Format: tn/{tenant}/
func tenantPrefix(tenant string) string {
	return fmt.Sprintf("tn/%s/", tenant)
}

// JobKey returns the record key for a job.
// Format: tn/{tenant}/job/{id}
func JobKey(tenant, id string) []byte {
	return []byte(tenantPrefix(tenant) + prefixJob + id)
}

// JobPrefix returns the prefix for scanning all jobs of a tenant.
func JobPrefix(tenant string) []byte {
	return []byte(tenantPrefix(tenant) + prefixJob)
}

// IdemKey returns the idempotency index key.
// Format: tn/{tenant}/idem/{type}/{key}
func IdemKey(tenant, typ, key string) []byte {
	return []byte(tenantPrefix(tenant) + prefixIdem + typ + "/" + key)
}

// DueKey returns the due index key for a job eligible at atMs.
// Format: tn/{tenant}/due/{at_ms:8B BE}/{id}
func DueKey(tenant string, atMs int64, id string) []byte {
	prefix := tenantPrefix(tenant) + prefixDue
	key := make([]byte, len(prefix)+8+len(id))
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(atMs))
	copy(key[len(prefix)+8:], id)
	return key
}

// DuePrefix returns the prefix for scanning the due index of a tenant.
func DuePrefix(tenant string) []byte {
	return []byte(tenantPrefix(tenant) + prefixDue)
}

// ParseDueKey extracts (atMs, jobID) from a due index key. ok is false when
// the key does not have the expected shape.
func ParseDueKey(tenant string, key []byte) (atMs int64, id string, ok bool) {
	prefix := DuePrefix(tenant)
	if len(key) < len(prefix)+8+1 {
		return 0, "", false
	}
	atMs = int64(binary.BigEndian.Uint64(key[len(prefix) : len(prefix)+8]))
	return atMs, string(key[len(prefix)+8:]), true
}

// DLQKey returns the dead-letter index key for a job.
// Format: tn/{tenant}/dlq/{id}
func DLQKey(tenant, id string) []byte {
	return []byte(tenantPrefix(tenant) + prefixDLQ + id)
}

// DLQPrefix returns the prefix for scanning a tenant's dead-letter index.
func DLQPrefix(tenant string) []byte {
	return []byte(tenantPrefix(tenant) + prefixDLQ)
}

// KeyUpperBound returns the exclusive upper bound for scanning under prefix.
func KeyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix)+1)
	copy(end, prefix)
	end[len(prefix)] = 0xFF
	return end
}
