package domain

import "errors"

// Ledger errors. Callers check them with errors.Is.
var (
	// ErrAccountNotFound is returned when an operation names an account this worker does not own.
	ErrAccountNotFound = errors.New("ledger: account not found")

	// ErrAccountExists is returned when an account id is created twice.
	ErrAccountExists = errors.New("ledger: account already exists")

	// ErrInsufficientFunds is returned when a debit would drive a balance below zero.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrLoanNotFound is returned when the loan id is not among the account's loans.
	ErrLoanNotFound = errors.New("ledger: loan not found")

	// ErrPaymentExceedsPending is returned when a payment is larger than the pending amount,
	// including every payment against a closed loan.
	ErrPaymentExceedsPending = errors.New("ledger: payment exceeds pending amount")

	// ErrInvalidAmount is returned for negative amounts or a pending amount above the principal.
	ErrInvalidAmount = errors.New("ledger: invalid amount")

	// ErrPersistence is returned when a mutation could not be made durable.
	ErrPersistence = errors.New("ledger: persistence failed")
)

// Lifecycle errors of the worker runtime.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("worker: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("worker: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("worker: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("worker: invalid configuration")
)
