package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a committed ledger change.
type EventType string

const (
	EventAccountCreated   EventType = "account_created"
	EventDebited          EventType = "debited"
	EventCredited         EventType = "credited"
	EventTransferRecorded EventType = "transfer_recorded"
	EventLoanCreated      EventType = "loan_created"
	EventLoanPaid         EventType = "loan_paid"
)

// Event describes a change that has already been made durable.
type Event struct {
	ID           string           `json:"id"`
	WorkerID     string           `json:"worker_id"`
	Type         EventType        `json:"type"`
	AccountID    uint64           `json:"account_id"`
	Counterparty *uint64          `json:"counterparty,omitempty"`
	LoanID       uint64           `json:"loan_id,omitempty"`
	Amount       decimal.Decimal  `json:"amount"`
	Pending      *decimal.Decimal `json:"pending,omitempty"`
	At           time.Time        `json:"at"`
}
