// Package snapshotguard watches the worker's durable snapshot for changes
// that did not come from the worker. The worker replaces its snapshot file by
// renaming a fully written temporary file over it, so an in-place write or a
// removal means another process touched state the worker owns exclusively.
package snapshotguard

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logAdapter "github.com/bft-labs/ledgerworker/internal/adapters/log"
	"github.com/bft-labs/ledgerworker/pkg/worker"
)

// Violation describes foreign activity on the snapshot.
type Violation struct {
	Path string
	// Op is the last observed operation: "write", "remove" or "rename".
	Op string
	// Count is the number of events folded into this violation.
	Count int
	At    time.Time
}

// Config holds configuration options for the snapshot guard plugin.
type Config struct {
	// DebounceDelay folds bursts of events into one violation.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// OnViolation is called for every reported violation, after it is logged.
	OnViolation func(Violation)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
	}
}

// Plugin implements snapshot ownership checks.
type Plugin struct {
	mu sync.Mutex

	debounceDelay time.Duration
	onViolation   func(Violation)

	path        string
	inPlaceSafe bool
	logger      worker.Logger
	watcher     *fsnotify.Watcher
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	debounce    *time.Timer
	pending     *Violation
}

// New creates a new snapshot guard plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		debounceDelay: cfg.DebounceDelay,
		onViolation:   cfg.OnViolation,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "snapshotguard"
}

// Initialize starts watching the snapshot's directory.
func (p *Plugin) Initialize(ctx context.Context, cfg worker.PluginConfig) error {
	p.mu.Lock()
	p.path = filepath.Clean(cfg.SnapshotPath)
	// SQLite updates its database file in place on every commit.
	p.inPlaceSafe = cfg.Storage == worker.StorageSQLite
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = logAdapter.NewNoopLogger()
	}
	p.mu.Unlock()

	if cfg.SnapshotPath == "" {
		p.logger.Warn("snapshot guard disabled: storage has no local snapshot file")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(p.path), err)
	}
	p.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.watchLoop(watchCtx)

	p.logger.Info("snapshot guard watching", worker.LogField{Key: "path", Value: p.path})
	return nil
}

// Shutdown stops the watcher and flushes a pending violation.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	if p.watcher != nil {
		_ = p.watcher.Close()
		p.watcher = nil
	}

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	p.flush()
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if op := p.classify(event.Op); op != "" {
				p.record(op)
			}

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("snapshot guard: watcher error", worker.LogField{Key: "error", Value: err})
		}
	}
}

// classify maps an event on the snapshot path to a violation kind, or "" when
// the event is the worker's own commit.
func (p *Plugin) classify(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Write) && !p.inPlaceSafe:
		return "write"
	default:
		// Create is the rename of a committed temp file over the snapshot.
		return ""
	}
}

func (p *Plugin) record(op string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending == nil {
		p.pending = &Violation{Path: p.path}
	}
	p.pending.Op = op
	p.pending.Count++
	p.pending.At = time.Now()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, p.flush)
}

func (p *Plugin) flush() {
	p.mu.Lock()
	v := p.pending
	p.pending = nil
	p.mu.Unlock()

	if v == nil {
		return
	}
	p.logger.Warn("snapshot changed outside the worker",
		worker.LogField{Key: "path", Value: v.Path},
		worker.LogField{Key: "op", Value: v.Op},
		worker.LogField{Key: "events", Value: v.Count},
	)
	if p.onViolation != nil {
		p.onViolation(*v)
	}
}
