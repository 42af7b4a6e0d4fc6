package ports

import (
	"context"

	"github.com/bft-labs/ledgerworker/internal/domain"
)

// EventPublisher announces ledger changes after they have been committed.
// Publishing is best effort: a failure never undoes a committed change.
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.Event) error
	Close() error
}
