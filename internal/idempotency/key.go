// Package idempotency derives stable deduplication keys for work items.
package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Derive returns the deduplication key for a work item. A caller-supplied key
// (an upstream event id, typically) wins; otherwise the key is a fingerprint
// of the payload so byte-identical redeliveries collapse to the same job.
// Pure; always produces a key.
func Derive(callerKey string, payload []byte) string {
	if k := strings.TrimSpace(callerKey); k != "" {
		return k
	}
	return Fingerprint(payload)
}

// Fingerprint hashes payload bytes into a stable hex key. JSON payloads are
// compacted first so insignificant whitespace does not split keys.
func Fingerprint(payload []byte) string {
	canon := payload
	if json.Valid(payload) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, payload); err == nil {
			canon = buf.Bytes()
		}
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:])
}
