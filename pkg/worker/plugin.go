package worker

import "context"

// Plugin extends a Worker with optional behavior that runs beside it.
// Plugins are initialized in registration order after the ledger is loaded,
// and shut down in reverse order after the worker stops.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// PluginConfig is what a plugin learns about the worker it runs in.
type PluginConfig struct {
	WorkerID string
	StateDir string
	Storage  string

	// SnapshotPath is the file holding the durable ledger: the JSON snapshot
	// or the SQLite database. Empty for postgres.
	SnapshotPath string

	Logger Logger
}

// BasePlugin implements Plugin with no-ops, for embedding.
type BasePlugin struct{}

func (BasePlugin) Name() string                                  { return "base" }
func (BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }
func (BasePlugin) Shutdown(context.Context) error                 { return nil }
