// Package pebblestore provides a thin wrapper around Pebble with an fsync
// policy and batch helpers. It is the durable keyed store underneath the job
// ledger; all higher-level coordination is expressed as batched writes and
// prefix scans against it.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeAlways,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	// Atomic multi-key updates
//	b := db.NewBatch()
//	_ = b.Set([]byte("k"), []byte("v"), nil)
//	_ = db.CommitBatch(context.Background(), b)
//	b.Close()
package pebblestore
