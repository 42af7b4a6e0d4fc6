// Package ledgerworker runs one worker node of a sharded ledger.
//
// Example usage:
//
//	cfg := ledgerworker.DefaultConfig()
//	cfg.WorkerID = "w1"
//	cfg.CoordinatorAddr = "localhost:9000"
//	if err := ledgerworker.Run(ctx, cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// Use pkg/worker directly for lifecycle control, event handlers and plugins.
package ledgerworker

import (
	"context"
	"time"

	"github.com/bft-labs/ledgerworker/pkg/worker"
)

// Config holds the worker configuration.
type Config = worker.Config

// DefaultConfig returns a Config with defaults applied. WorkerID must be set
// before calling Run.
func DefaultConfig() Config {
	var cfg Config
	cfg.SetDefaults()
	return cfg
}

// Run starts a worker and blocks until ctx is canceled or the worker stops
// on its own. It returns the crash error, if any.
func Run(ctx context.Context, cfg Config, opts ...worker.Option) error {
	w, err := worker.New(cfg, opts...)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}

	// Canceling ctx ends the worker's run, which then stops itself.
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		switch w.Status() {
		case worker.StateCrashed:
			return w.Err()
		case worker.StateStopped:
			return nil
		}
	}
	return nil
}
