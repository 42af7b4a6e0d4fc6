package ports

import (
	"context"

	"github.com/bft-labs/ledgerworker/internal/domain"
)

// SnapshotStore persists the worker's ledger as one durable unit.
// It is owned exclusively by one worker process.
type SnapshotStore interface {
	// Load returns the last committed snapshot.
	// When no durable state exists yet, the store initializes an empty ledger
	// and returns it.
	Load(ctx context.Context) (domain.Snapshot, error)

	// Commit durably replaces the stored snapshot. After a crash, recovery sees
	// either the previous snapshot or this one, never a partial write.
	// Commit must not return nil before the snapshot is durable.
	Commit(ctx context.Context, snap domain.Snapshot) error

	// Close releases the underlying resources.
	Close() error
}
