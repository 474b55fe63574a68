package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/nordfund/jobq/internal/jobstore"
)

// ErrBadFilter is returned when a list filter expression does not compile.
var ErrBadFilter = errors.New("queue: bad filter expression")

// Filter wraps a compiled CEL program used by job listing. When the
// expression is empty the filter is disabled and Eval always returns true.
//
// Available variables: id, type, status, attempts, max_attempts, last_error,
// claimed_by (strings/ints), payload (parsed JSON) and now_ms.
type Filter struct {
	prog    cel.Program
	enabled bool
}

// NewFilter compiles expr. An empty expression yields a disabled filter.
func NewFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("type", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("attempts", cel.IntType),
		cel.Variable("max_attempts", cel.IntType),
		cel.Variable("last_error", cel.StringType),
		cel.Variable("claimed_by", cel.StringType),
		cel.Variable("payload", cel.DynType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, fmt.Errorf("%w: %v", ErrBadFilter, iss.Err())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return Filter{}, err
	}
	return Filter{prog: prog, enabled: true}, nil
}

// Enabled reports whether an expression was compiled.
func (f Filter) Enabled() bool { return f.enabled }

// Eval evaluates the expression against a job. Evaluation errors count as a
// non-match.
func (f Filter) Eval(j *jobstore.Job, nowMs int64) bool {
	if !f.enabled {
		return true
	}
	var payload any
	_ = json.Unmarshal(j.Payload, &payload)
	out, _, err := f.prog.Eval(map[string]any{
		"id":           j.ID,
		"type":         j.Type,
		"status":       string(j.Status),
		"attempts":     int64(j.Attempts),
		"max_attempts": int64(j.MaxAttempts),
		"last_error":   j.LastError,
		"claimed_by":   j.ClaimedBy,
		"payload":      payload,
		"now_ms":       nowMs,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
