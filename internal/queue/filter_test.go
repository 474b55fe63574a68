package queue

import (
	"testing"

	"github.com/nordfund/jobq/internal/jobstore"
)

func TestFilterDisabled(t *testing.T) {
	f, err := NewFilter("")
	if err != nil {
		t.Fatalf("empty filter: %v", err)
	}
	if f.Enabled() || !f.Eval(&jobstore.Job{}, 0) {
		t.Fatalf("empty expression must match everything")
	}
}

func TestFilterFields(t *testing.T) {
	f, err := NewFilter(`status == "error" && attempts >= 2`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	match := &jobstore.Job{Status: jobstore.StatusError, Attempts: 3}
	miss := &jobstore.Job{Status: jobstore.StatusError, Attempts: 1}
	if !f.Eval(match, 0) || f.Eval(miss, 0) {
		t.Fatalf("field filter misbehaves")
	}
}

func TestFilterPayloadAccess(t *testing.T) {
	f, err := NewFilter(`payload.voucherSeries == "A"`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	match := &jobstore.Job{Payload: []byte(`{"voucherSeries":"A"}`)}
	miss := &jobstore.Job{Payload: []byte(`{"voucherSeries":"B"}`)}
	if !f.Eval(match, 0) || f.Eval(miss, 0) {
		t.Fatalf("payload filter misbehaves")
	}
	// Jobs without the field simply don't match.
	if f.Eval(&jobstore.Job{Payload: []byte(`{}`)}, 0) {
		t.Fatalf("missing field must not match")
	}
}

func TestFilterBadExpression(t *testing.T) {
	if _, err := NewFilter(`status ==`); err == nil {
		t.Fatalf("expected compile error")
	}
}
