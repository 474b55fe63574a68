package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	cfgpkg "github.com/nordfund/jobq/internal/config"
	"github.com/nordfund/jobq/internal/posting"
	"github.com/nordfund/jobq/internal/queue"
	"github.com/nordfund/jobq/internal/runtime"
	httpserver "github.com/nordfund/jobq/internal/server/http"
	pebblestore "github.com/nordfund/jobq/internal/storage/pebble"
	logpkg "github.com/nordfund/jobq/pkg/log"
)

// Options configures a server run.
type Options struct {
	DataDir  string
	HTTPAddr string
	Fsync    pebblestore.FsyncMode
	Config   cfgpkg.Config

	// Handlers are registered with the queue before serving. The outbound
	// posting processor is wired here when a Poster is supplied.
	Handlers map[string]queue.Handler
	Poster   posting.Poster
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logpkg.ApplyConfig(&logpkg.Config{
		Level:  opts.Config.LogLevel,
		Format: opts.Config.LogFormat,
	})
	if err != nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}

	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	storeDir := filepath.Join(opts.DataDir, "store")
	rt, err := runtime.Open(runtime.Options{
		DataDir: storeDir,
		Fsync:   opts.Fsync,
		Config:  opts.Config,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	for typ, h := range opts.Handlers {
		rt.Queue().Registry().Register(typ, h)
	}
	if opts.Poster != nil {
		rt.Queue().Registry().Register(posting.JobType, posting.NewProcessor(opts.Poster))
	}

	addr := opts.HTTPAddr
	if addr == "" {
		addr = opts.Config.HTTPAddr
	}
	logger.Info("starting jobq server",
		logpkg.Str("http", addr),
		logpkg.Str("data_dir", storeDir),
		logpkg.F("job_types", rt.Queue().Registry().Types()),
	)

	hsrv := httpserver.New(rt)
	errCh := make(chan error, 1)
	go func() { errCh <- hsrv.ListenAndServe(sctx, addr) }()

	select {
	case <-sctx.Done():
	case err := <-errCh:
		if err != nil && sctx.Err() == nil {
			return err
		}
	}
	hsrv.Close()
	return nil
}
