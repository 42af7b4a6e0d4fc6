package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a balance owned by this worker's partition.
type Account struct {
	ID      uint64          `json:"id"`
	Balance decimal.Decimal `json:"balance"`
	Loans   []uint64        `json:"loans"`
}

func (a Account) clone() Account {
	loans := make([]uint64, len(a.Loans))
	copy(loans, a.Loans)
	a.Loans = loans
	return a
}

// EntryType names the kind of a transaction record.
type EntryType string

const (
	EntryDebit       EntryType = "debit"
	EntryCredit      EntryType = "credit"
	EntryTransferOut EntryType = "transfer_out"
	EntryTransferIn  EntryType = "transfer_in"
)

// LogEntry is one write-once record in an account's transaction log.
// To and From are only set for transfer records.
type LogEntry struct {
	Type   EntryType       `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	To     *uint64         `json:"to,omitempty"`
	From   *uint64         `json:"from,omitempty"`
	At     time.Time       `json:"at"`
}
