package runtime

import (
	"context"
	"testing"

	cfgpkg "github.com/nordfund/jobq/internal/config"
	pebblestore "github.com/nordfund/jobq/internal/storage/pebble"
)

func TestOpenAndHealth(t *testing.T) {
	rt, err := Open(Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeAlways,
		Config:  cfgpkg.Default(),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rt.Close()

	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if rt.Queue() == nil || rt.Store() == nil || rt.Auditor() == nil {
		t.Fatal("runtime facades not wired")
	}
}

func TestEnqueueThroughRuntime(t *testing.T) {
	rt, err := Open(Options{DataDir: t.TempDir(), Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rt.Close()

	job, deduped, err := rt.Queue().Enqueue(context.Background(), "default", "noop", []byte(`{}`), "", 0)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if deduped {
		t.Fatal("first enqueue should not dedup")
	}
	if job.MaxAttempts != cfgpkg.Default().Queue.MaxAttempts {
		t.Errorf("MaxAttempts = %d, want config default", job.MaxAttempts)
	}
}
