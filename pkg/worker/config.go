package worker

import (
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/ledgerworker/internal/adapters/kafka"
	"github.com/bft-labs/ledgerworker/internal/app"
	"github.com/bft-labs/ledgerworker/internal/domain"
	"github.com/bft-labs/ledgerworker/internal/ledger"
)

// Storage backends for the ledger snapshot.
const (
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Default configuration values.
const (
	DefaultCoordinatorAddr = "localhost:9000"
	DefaultDialTimeout     = 5 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
)

// Config holds the configuration of a Worker.
type Config struct {
	// WorkerID identifies this worker to the coordinator and names its
	// durable state. Required.
	WorkerID string

	// CoordinatorAddr is the host:port of the coordinator.
	// Default: localhost:9000
	CoordinatorAddr string

	// StateDir holds the snapshot file or SQLite database.
	// Default: current directory
	StateDir string

	// Storage selects the snapshot backend: file, sqlite or postgres.
	// Default: file
	Storage string

	// DatabaseDSN is the Postgres connection string. Required for postgres.
	DatabaseDSN string

	// RetryInterval is the wait before reconnecting. Default: 2s.
	RetryInterval time.Duration

	// RetryMax caps the reconnect wait. Equal to RetryInterval means a fixed
	// interval; larger enables doubling with jitter. Default: RetryInterval.
	RetryMax time.Duration

	// DialTimeout bounds one connection attempt. Default: 5s.
	DialTimeout time.Duration

	// WriteTimeout bounds writing one response line. Default: 10s.
	WriteTimeout time.Duration

	// CommitTimeout bounds one snapshot commit. Default: 5s.
	CommitTimeout time.Duration

	// ExitOnDisconnect stops the worker when the coordinator closes the
	// connection, instead of reconnecting.
	ExitOnDisconnect bool

	// KafkaBrokers enables publishing ledger events when not empty.
	KafkaBrokers []string

	// KafkaTopic receives the ledger events. Default: ledger.events
	KafkaTopic string
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	if c.CoordinatorAddr == "" {
		c.CoordinatorAddr = DefaultCoordinatorAddr
	}
	if c.StateDir == "" {
		c.StateDir = "."
	}
	if c.Storage == "" {
		c.Storage = StorageFile
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = app.DefaultRetryInterval
	}
	if c.RetryMax == 0 {
		c.RetryMax = c.RetryInterval
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.CommitTimeout == 0 {
		c.CommitTimeout = ledger.DefaultCommitTimeout
	}
	if c.KafkaTopic == "" {
		c.KafkaTopic = kafka.DefaultTopic
	}
}

// Validate checks the configuration. Errors wrap domain.ErrInvalidConfig.
func (c Config) Validate() error {
	if strings.TrimSpace(c.WorkerID) == "" {
		return fmt.Errorf("%w: worker id is required", domain.ErrInvalidConfig)
	}
	if strings.ContainsAny(c.WorkerID, "|\n\r/\\") {
		return fmt.Errorf("%w: worker id %q contains a reserved character", domain.ErrInvalidConfig, c.WorkerID)
	}
	if c.CoordinatorAddr == "" {
		return fmt.Errorf("%w: coordinator address is required", domain.ErrInvalidConfig)
	}
	switch c.Storage {
	case StorageFile, StorageSQLite:
	case StoragePostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("%w: database dsn is required for postgres storage", domain.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage %q", domain.ErrInvalidConfig, c.Storage)
	}
	if c.RetryInterval < 0 || c.RetryMax < 0 || c.DialTimeout < 0 || c.WriteTimeout < 0 || c.CommitTimeout < 0 {
		return fmt.Errorf("%w: durations must not be negative", domain.ErrInvalidConfig)
	}
	if c.RetryMax > 0 && c.RetryMax < c.RetryInterval {
		return fmt.Errorf("%w: retry max %v is below retry interval %v", domain.ErrInvalidConfig, c.RetryMax, c.RetryInterval)
	}
	return nil
}
