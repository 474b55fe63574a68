package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nordfund/jobq/internal/jobstore"
)

// ErrUnknownType is the permanent failure for a job type with no registered
// handler. Retrying cannot help, so it routes straight to dead-letter.
var ErrUnknownType = errors.New("queue: no handler for job type")

// Handler executes the effect of a job. Implementations are supplied per job
// type by the embedding application (posting to an external ledger, applying a
// webhook event). A handler may be re-invoked for the same job after a crash,
// so it must be idempotent downstream, typically by forwarding the job's
// idempotency key.
type Handler interface {
	Process(ctx context.Context, job *jobstore.Job) (json.RawMessage, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, job *jobstore.Job) (json.RawMessage, error)

// Process calls f.
func (f HandlerFunc) Process(ctx context.Context, job *jobstore.Job) (json.RawMessage, error) {
	return f(ctx, job)
}

// Registry maps job types to their handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a job type, replacing any previous binding.
func (r *Registry) Register(jobType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = h
}

// Types returns the registered job types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}

// Dispatch runs the handler for job's type. An unknown type is a permanent
// failure. A panicking handler is converted into an ordinary (retryable)
// error so one bad job cannot take down the batch.
func (r *Registry) Dispatch(ctx context.Context, job *jobstore.Job) (result json.RawMessage, err error) {
	r.mu.RLock()
	h, ok := r.handlers[job.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, Permanent(fmt.Errorf("%w: %q", ErrUnknownType, job.Type))
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("queue: handler panic for job %s: %v", job.ID, rec)
		}
	}()
	return h.Process(ctx, job)
}

// permanentError marks a failure that no amount of retrying can fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the scheduler escalates straight to dead-letter
// instead of consuming retry budget.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err is marked permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
