// Package ledger runs the worker's ledger as a single-owner actor.
//
// One goroutine owns the snapshot. Every operation is sent to it over a
// channel, so the full load, validate, mutate and commit sequence of one
// command never interleaves with another, however many sessions are open.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	logAdapter "github.com/bft-labs/ledgerworker/internal/adapters/log"
	"github.com/bft-labs/ledgerworker/internal/domain"
	"github.com/bft-labs/ledgerworker/internal/ports"
)

// DefaultCommitTimeout bounds a single snapshot commit.
const DefaultCommitTimeout = 5 * time.Second

// ErrClosed is returned for operations submitted after Close.
var ErrClosed = errors.New("ledger: closed")

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger ports.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithPublisher publishes an event for every committed change.
func WithPublisher(p ports.EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithCommitTimeout bounds each commit. Zero disables the bound.
func WithCommitTimeout(d time.Duration) Option {
	return func(l *Ledger) { l.commitTimeout = d }
}

// WithWorkerID stamps published events with the worker identity.
func WithWorkerID(id string) Option {
	return func(l *Ledger) { l.workerID = id }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

type request struct {
	// mutate requests run against a copy that is committed before it replaces
	// the owned snapshot; read requests see the owned snapshot directly.
	mutate bool
	fn     func(snap *domain.Snapshot, now time.Time) ([]domain.Event, error)
	reply  chan error
}

// Ledger serializes all access to one worker's snapshot.
type Ledger struct {
	store         ports.SnapshotStore
	publisher     ports.EventPublisher
	logger        ports.Logger
	workerID      string
	commitTimeout time.Duration
	now           func() time.Time

	requests chan request
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	snap domain.Snapshot
}

// Open loads the committed snapshot from store and starts the owner goroutine.
func Open(ctx context.Context, store ports.SnapshotStore, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		store:         store,
		logger:        logAdapter.NewNoopLogger(),
		commitTimeout: DefaultCommitTimeout,
		now:           time.Now,
		requests:      make(chan request),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	snap.Normalize()
	l.snap = snap

	total, count := snap.Audit()
	l.logger.Info("ledger loaded",
		ports.Int("accounts", count),
		ports.String("total", total.String()),
		ports.Uint64("loan_counter", snap.LoanCounter),
	)

	go l.run()
	return l, nil
}

// Close stops the owner goroutine after the request in progress completes.
func (l *Ledger) Close() error {
	l.stopOnce.Do(func() { close(l.quit) })
	<-l.done
	return nil
}

func (l *Ledger) run() {
	defer close(l.done)
	for {
		select {
		case <-l.quit:
			return
		case req := <-l.requests:
			req.reply <- l.handle(req)
		}
	}
}

func (l *Ledger) handle(req request) error {
	now := l.now()
	if !req.mutate {
		_, err := req.fn(&l.snap, now)
		return err
	}

	next := l.snap.Clone()
	events, err := req.fn(&next, now)
	if err != nil {
		return err
	}

	if err := l.commit(next); err != nil {
		l.logger.Error("snapshot commit failed", ports.Err(err))
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	l.snap = next
	l.publish(events, now)
	return nil
}

func (l *Ledger) commit(snap domain.Snapshot) error {
	ctx := context.Background()
	if l.commitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.commitTimeout)
		defer cancel()
	}
	return l.store.Commit(ctx, snap)
}

func (l *Ledger) publish(events []domain.Event, now time.Time) {
	if l.publisher == nil || len(events) == 0 {
		return
	}
	for i := range events {
		events[i].ID = uuid.NewString()
		events[i].WorkerID = l.workerID
		events[i].At = now
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.publisher.Publish(ctx, events...); err != nil {
		l.logger.Warn("publish ledger events failed",
			ports.Int("events", len(events)),
			ports.Err(err),
		)
	}
}

// submit hands a request to the owner goroutine. Once accepted, the request
// runs to completion even if ctx is canceled while it runs.
func (l *Ledger) submit(ctx context.Context, mutate bool, fn func(*domain.Snapshot, time.Time) ([]domain.Event, error)) error {
	req := request{mutate: mutate, fn: fn, reply: make(chan error, 1)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return ErrClosed
	case l.requests <- req:
	}
	return <-req.reply
}

// CreateAccount opens an account. Reusing an id fails with domain.ErrAccountExists.
func (l *Ledger) CreateAccount(ctx context.Context, id uint64, balance decimal.Decimal) error {
	return l.submit(ctx, true, func(s *domain.Snapshot, _ time.Time) ([]domain.Event, error) {
		if err := s.CreateAccount(id, balance); err != nil {
			return nil, err
		}
		return []domain.Event{{Type: domain.EventAccountCreated, AccountID: id, Amount: balance}}, nil
	})
}

// Account returns the account with the given id.
func (l *Ledger) Account(ctx context.Context, id uint64) (domain.Account, error) {
	var acc domain.Account
	err := l.submit(ctx, false, func(s *domain.Snapshot, _ time.Time) ([]domain.Event, error) {
		var err error
		acc, err = s.Account(id)
		return nil, err
	})
	return acc, err
}

// Debit withdraws amount from an account.
func (l *Ledger) Debit(ctx context.Context, id uint64, amount decimal.Decimal) error {
	return l.submit(ctx, true, func(s *domain.Snapshot, now time.Time) ([]domain.Event, error) {
		if err := s.Debit(id, amount, now); err != nil {
			return nil, err
		}
		return []domain.Event{{Type: domain.EventDebited, AccountID: id, Amount: amount}}, nil
	})
}

// Credit deposits amount into an account.
func (l *Ledger) Credit(ctx context.Context, id uint64, amount decimal.Decimal) error {
	return l.submit(ctx, true, func(s *domain.Snapshot, now time.Time) ([]domain.Event, error) {
		if err := s.Credit(id, amount, now); err != nil {
			return nil, err
		}
		return []domain.Event{{Type: domain.EventCredited, AccountID: id, Amount: amount}}, nil
	})
}

// RecordTransfer logs a transfer already settled by the coordinator.
func (l *Ledger) RecordTransfer(ctx context.Context, from, to uint64, amount decimal.Decimal) error {
	return l.submit(ctx, true, func(s *domain.Snapshot, now time.Time) ([]domain.Event, error) {
		logged, err := s.RecordTransfer(from, to, amount, now)
		if err != nil {
			return nil, err
		}
		events := make([]domain.Event, 0, len(logged))
		for _, id := range logged {
			counterparty := to
			if id == to {
				counterparty = from
			}
			events = append(events, domain.Event{
				Type:         domain.EventTransferRecorded,
				AccountID:    id,
				Counterparty: &counterparty,
				Amount:       amount,
			})
		}
		return events, nil
	})
}

// CreateLoan attaches a new loan to the account and returns its id.
func (l *Ledger) CreateLoan(ctx context.Context, accountID uint64, amount, pending decimal.Decimal) (uint64, error) {
	var loanID uint64
	err := l.submit(ctx, true, func(s *domain.Snapshot, now time.Time) ([]domain.Event, error) {
		loan, err := s.CreateLoan(accountID, amount, pending, now)
		if err != nil {
			return nil, err
		}
		loanID = loan.ID
		return []domain.Event{{
			Type:      domain.EventLoanCreated,
			AccountID: accountID,
			LoanID:    loan.ID,
			Amount:    amount,
			Pending:   &loan.Pending,
		}}, nil
	})
	return loanID, err
}

// PayLoan applies a payment and returns the amount still pending.
func (l *Ledger) PayLoan(ctx context.Context, accountID, loanID uint64, amount decimal.Decimal) (decimal.Decimal, error) {
	var remaining decimal.Decimal
	err := l.submit(ctx, true, func(s *domain.Snapshot, _ time.Time) ([]domain.Event, error) {
		loan, err := s.PayLoan(accountID, loanID, amount)
		if err != nil {
			return nil, err
		}
		remaining = loan.Pending
		return []domain.Event{{
			Type:      domain.EventLoanPaid,
			AccountID: accountID,
			LoanID:    loanID,
			Amount:    amount,
			Pending:   &loan.Pending,
		}}, nil
	})
	return remaining, err
}

// LoanStatus reports the loans of an account.
func (l *Ledger) LoanStatus(ctx context.Context, accountID uint64) ([]domain.LoanSummary, error) {
	var out []domain.LoanSummary
	err := l.submit(ctx, false, func(s *domain.Snapshot, _ time.Time) ([]domain.Event, error) {
		var err error
		out, err = s.LoanSummaries(accountID)
		return nil, err
	})
	return out, err
}

// Audit returns the sum of all balances and the number of accounts.
func (l *Ledger) Audit(ctx context.Context) (decimal.Decimal, int, error) {
	var (
		total decimal.Decimal
		count int
	)
	err := l.submit(ctx, false, func(s *domain.Snapshot, _ time.Time) ([]domain.Event, error) {
		total, count = s.Audit()
		return nil, nil
	})
	return total, count, err
}

// Entries returns the transaction log of an account.
func (l *Ledger) Entries(ctx context.Context, accountID uint64) ([]domain.LogEntry, error) {
	var out []domain.LogEntry
	err := l.submit(ctx, false, func(s *domain.Snapshot, _ time.Time) ([]domain.Event, error) {
		if _, err := s.Account(accountID); err != nil {
			return nil, err
		}
		out = s.Entries(accountID)
		return nil, nil
	})
	return out, err
}
