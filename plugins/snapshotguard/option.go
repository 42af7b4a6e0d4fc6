package snapshotguard

import "github.com/bft-labs/ledgerworker/pkg/worker"

// WithSnapshotGuard returns a worker Option that enables the snapshot guard.
//
// Usage:
//
//	w, err := worker.New(cfg,
//	    snapshotguard.WithSnapshotGuard(snapshotguard.Config{
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithSnapshotGuard(cfg Config) worker.Option {
	return worker.WithPlugin(New(cfg))
}

// WithDefaultSnapshotGuard returns a worker Option that enables the snapshot
// guard with default settings.
func WithDefaultSnapshotGuard() worker.Option {
	return WithSnapshotGuard(DefaultConfig())
}
