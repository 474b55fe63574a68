package jobstore

import (
	"errors"
	"testing"
)

func TestRecordRoundtrip(t *testing.T) {
	in := &Job{TenantID: "t", ID: "j1", Type: "inbound-event", Status: StatusQueued, Version: 3}
	enc, err := EncodeRecord(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out Job
	if err := DecodeRecord(enc, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ID != "j1" || out.Status != StatusQueued || out.Version != 3 {
		t.Fatalf("mismatch: %+v", out)
	}
}

func TestRecordChecksumFailure(t *testing.T) {
	enc, _ := EncodeRecord(&Job{TenantID: "t", ID: "j1"})
	enc[0] ^= 0xFF
	var out Job
	if err := DecodeRecord(enc, &out); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord, got %v", err)
	}
	if err := DecodeRecord([]byte{1, 2}, &out); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord on short frame, got %v", err)
	}
}
