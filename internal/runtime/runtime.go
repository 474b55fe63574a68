package runtime

import (
	"context"
	"errors"

	"github.com/nordfund/jobq/internal/audit"
	cfgpkg "github.com/nordfund/jobq/internal/config"
	"github.com/nordfund/jobq/internal/jobstore"
	"github.com/nordfund/jobq/internal/queue"
	pebblestore "github.com/nordfund/jobq/internal/storage/pebble"
	"github.com/nordfund/jobq/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	DataDir string
	Fsync   pebblestore.FsyncMode
	Config  cfgpkg.Config
	Logger  log.Logger
}

// Runtime wires storage, the job store, and the queue service for a
// single-node instance.
type Runtime struct {
	db      *pebblestore.DB
	store   *jobstore.Store
	auditor *audit.Recorder
	queue   *queue.Service
	config  cfgpkg.Config
	logger  log.Logger
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	db, err := pebblestore.Open(pebblestore.Options{DataDir: opts.DataDir, Fsync: opts.Fsync})
	if err != nil {
		return nil, err
	}

	store := jobstore.New(db)
	auditor := audit.NewRecorder(db, logger)
	svc := queue.New(store, queue.NewRegistry(), auditor, logger, queue.Options{
		DefaultMaxAttempts: opts.Config.Queue.MaxAttempts,
		DefaultLeaseMs:     opts.Config.Queue.LeaseMs,
		Backoff: queue.BackoffPolicy{
			BaseMs: opts.Config.Queue.BackoffBaseMs,
			CapMs:  opts.Config.Queue.BackoffCapMs,
		},
	})

	return &Runtime{
		db:      db,
		store:   store,
		auditor: auditor,
		queue:   svc,
		config:  opts.Config,
		logger:  logger,
	}, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple health check against storage.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Queue returns the job queue service.
func (r *Runtime) Queue() *queue.Service { return r.queue }

// Store returns the job store for direct reads (internal use only).
func (r *Runtime) Store() *jobstore.Store { return r.store }

// Auditor returns the run auditor.
func (r *Runtime) Auditor() *audit.Recorder { return r.auditor }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the runtime's base logger.
func (r *Runtime) Logger() log.Logger { return r.logger }
