package worker

import (
	"github.com/bft-labs/ledgerworker/internal/ports"
)

// Logger is the interface for structured logging.
type Logger = ports.Logger

// LogField represents a structured log field.
type LogField = ports.Field

// Dialer opens the coordinator connection. *net.Dialer satisfies it.
type Dialer = ports.Dialer

// EventPublisher receives every committed ledger change.
type EventPublisher = ports.EventPublisher

// SnapshotStore persists the ledger snapshot.
type SnapshotStore = ports.SnapshotStore

// Option configures optional behavior of a Worker.
type Option func(*options)

// options holds the optional configuration for a Worker instance.
type options struct {
	logger       ports.Logger
	eventHandler EventHandler
	dialer       ports.Dialer
	publisher    ports.EventPublisher
	store        ports.SnapshotStore
	plugins      []Plugin
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for worker events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithDialer replaces the TCP dialer used to reach the coordinator.
func WithDialer(d Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithEventPublisher publishes committed ledger changes through p instead of
// the Kafka publisher built from KafkaBrokers.
func WithEventPublisher(p EventPublisher) Option {
	return func(o *options) {
		o.publisher = p
	}
}

// WithSnapshotStore replaces the store selected by Config.Storage.
// The worker closes it on shutdown.
func WithSnapshotStore(s SnapshotStore) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithPlugin registers a plugin to be initialized when the worker starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}
