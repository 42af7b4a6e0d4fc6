package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/bft-labs/ledgerworker/internal/adapters/fs"
	"github.com/bft-labs/ledgerworker/internal/adapters/kafka"
	logAdapter "github.com/bft-labs/ledgerworker/internal/adapters/log"
	"github.com/bft-labs/ledgerworker/internal/adapters/sqlstore"
	"github.com/bft-labs/ledgerworker/internal/app"
	"github.com/bft-labs/ledgerworker/internal/command"
	"github.com/bft-labs/ledgerworker/internal/domain"
	"github.com/bft-labs/ledgerworker/internal/ledger"
	"github.com/bft-labs/ledgerworker/internal/ports"
)

// Worker is a ledger worker that can be embedded in other applications.
// Use New() to create an instance, then Start() to connect to the coordinator.
type Worker struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	emitter   *eventEmitterWrapper
	logger    ports.Logger
	plugins   []Plugin

	mu         sync.Mutex
	store      ports.SnapshotStore
	publisher  ports.EventPublisher
	ledger     *ledger.Ledger
	supervisor *app.Supervisor
}

// New creates a new Worker with the given configuration.
// The instance is created in StateStopped; call Start() to begin serving.
// Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*Worker, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logAdapter.NewNoopLogger()
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler, address: cfg.CoordinatorAddr}

	return &Worker{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(logger, emitter),
		emitter:   emitter,
		logger:    logger,
		plugins:   o.plugins,
	}, nil
}

// Start loads the ledger and begins serving the coordinator in the background.
// Returns an error if already running or if the ledger cannot be loaded.
// The provided context bounds the lifetime of the worker.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := w.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.lifecycle.SetCancel(cancel)

	if err := w.open(runCtx); err != nil {
		cancel()
		w.release()
		_ = w.lifecycle.Crash(err)
		return err
	}

	pluginCfg := PluginConfig{
		WorkerID:     w.config.WorkerID,
		StateDir:     w.config.StateDir,
		Storage:      w.config.Storage,
		SnapshotPath: w.snapshotPath(),
		Logger:       w.logger,
	}
	for i, p := range w.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			w.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			cancel()
			w.shutdownPlugins(w.plugins[:i])
			w.release()
			_ = w.lifecycle.Crash(fmt.Errorf("plugin %s: %w", p.Name(), err))
			return err
		}
		w.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	supervisor := w.supervisor
	w.lifecycle.Go(func() {
		if err := w.lifecycle.TransitionTo(app.StateRunning, "ledger loaded"); err != nil {
			w.logger.Error("failed to transition to running", ports.Err(err))
			return
		}

		err := supervisor.Run(runCtx)

		switch {
		case runCtx.Err() != nil:
			// Stop() or the parent context ended the run.
			if ctx.Err() != nil {
				w.finish("context done")
			}
		case err == nil:
			w.finish("coordinator disconnected")
		default:
			w.logger.Error("worker error", ports.Err(err))
			w.teardown()
			_ = w.lifecycle.Crash(err)
		}
	})

	return nil
}

// finish stops a worker whose run ended on its own.
func (w *Worker) finish(reason string) {
	if err := w.lifecycle.TransitionTo(app.StateStopping, reason); err != nil {
		// Stop() is already shutting down.
		return
	}
	w.teardown()
	_ = w.lifecycle.TransitionTo(app.StateStopped, reason)
}

// Stop cancels the coordinator session and releases the ledger.
// A command being applied completes first.
// Waits up to 30 seconds before forcing shutdown.
// Returns nil on graceful shutdown, ErrShutdownTimeout if forced.
func (w *Worker) Stop() error {
	if !w.lifecycle.CanStop() {
		return domain.ErrNotRunning
	}
	if err := w.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		return err
	}
	w.lifecycle.Cancel()

	err := w.lifecycle.WaitWithTimeout(app.ShutdownTimeout)
	w.teardown()

	if err != nil {
		_ = w.lifecycle.Crash(err)
	} else {
		_ = w.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (w *Worker) Status() State {
	return convertState(w.lifecycle.State())
}

// Err returns the error that crashed the worker, if any.
func (w *Worker) Err() error {
	return w.lifecycle.Err()
}

// open builds the store, publisher, ledger and supervisor.
func (w *Worker) open(ctx context.Context) error {
	store, err := w.openStore(ctx)
	if err != nil {
		return err
	}
	w.store = store

	w.publisher = w.opts.publisher
	if w.publisher == nil && len(w.config.KafkaBrokers) > 0 {
		w.publisher = kafka.NewPublisher(w.config.KafkaBrokers, w.config.KafkaTopic, w.logger)
		w.logger.Info("publishing ledger events",
			ports.String("topic", w.config.KafkaTopic),
			ports.Any("brokers", w.config.KafkaBrokers),
		)
	}

	ledgerOpts := []ledger.Option{
		ledger.WithLogger(w.logger),
		ledger.WithCommitTimeout(w.config.CommitTimeout),
		ledger.WithWorkerID(w.config.WorkerID),
	}
	if w.publisher != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithPublisher(w.publisher))
	}
	l, err := ledger.Open(ctx, store, ledgerOpts...)
	if err != nil {
		return err
	}
	w.ledger = l

	w.supervisor = app.NewSupervisor(app.SupervisorConfig{
		WorkerID:         w.config.WorkerID,
		Address:          w.config.CoordinatorAddr,
		RetryInterval:    w.config.RetryInterval,
		RetryMax:         w.config.RetryMax,
		DialTimeout:      w.config.DialTimeout,
		WriteTimeout:     w.config.WriteTimeout,
		ExitOnDisconnect: w.config.ExitOnDisconnect,
	}, w.opts.dialer, command.NewInterpreter(l, w.logger), w.logger, w.emitter)
	return nil
}

func (w *Worker) openStore(ctx context.Context) (ports.SnapshotStore, error) {
	if w.opts.store != nil {
		return w.opts.store, nil
	}
	switch w.config.Storage {
	case StorageSQLite:
		return sqlstore.OpenSQLite(ctx, sqlstore.SQLitePath(w.config.StateDir, w.config.WorkerID), w.config.WorkerID)
	case StoragePostgres:
		return sqlstore.OpenPostgres(ctx, w.config.DatabaseDSN, w.config.WorkerID)
	default:
		return fs.NewSnapshotFileRepository(w.config.StateDir, w.config.WorkerID, fs.WithLogger(w.logger)), nil
	}
}

func (w *Worker) snapshotPath() string {
	if w.opts.store != nil {
		return ""
	}
	switch w.config.Storage {
	case StorageFile:
		return fs.NewSnapshotFileRepository(w.config.StateDir, w.config.WorkerID).Path()
	case StorageSQLite:
		return sqlstore.SQLitePath(w.config.StateDir, w.config.WorkerID)
	default:
		return ""
	}
}

// teardown shuts down plugins and releases resources, once per run.
func (w *Worker) teardown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ledger == nil && w.store == nil {
		return
	}
	w.shutdownPlugins(w.plugins)
	w.release()
}

// release closes the ledger, publisher and store. Callers hold w.mu.
func (w *Worker) release() {
	if w.ledger != nil {
		_ = w.ledger.Close()
		w.ledger = nil
	}
	if w.publisher != nil {
		if err := w.publisher.Close(); err != nil {
			w.logger.Warn("close event publisher", ports.Err(err))
		}
		w.publisher = nil
	}
	if w.store != nil {
		if err := w.store.Close(); err != nil {
			w.logger.Warn("close snapshot store", ports.Err(err))
		}
		w.store = nil
	}
	w.supervisor = nil
}

// shutdownPlugins shuts plugins down in reverse order.
func (w *Worker) shutdownPlugins(plugins []Plugin) {
	ctx := context.Background()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			w.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
		} else {
			w.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
		}
	}
}
