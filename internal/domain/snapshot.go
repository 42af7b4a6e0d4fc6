package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the full ledger of one worker at one instant.
// It is persisted and restored as a single unit.
type Snapshot struct {
	Accounts     map[uint64]Account    `json:"accounts"`
	Loans        map[uint64][]Loan     `json:"loans"`
	LoanCounter  uint64                `json:"loan_counter"`
	Transactions map[uint64][]LogEntry `json:"transactions"`
}

// NewSnapshot returns an empty ledger.
func NewSnapshot() Snapshot {
	return Snapshot{
		Accounts:     make(map[uint64]Account),
		Loans:        make(map[uint64][]Loan),
		Transactions: make(map[uint64][]LogEntry),
	}
}

// Normalize replaces nil maps left by decoding an older or partial record.
func (s *Snapshot) Normalize() {
	if s.Accounts == nil {
		s.Accounts = make(map[uint64]Account)
	}
	if s.Loans == nil {
		s.Loans = make(map[uint64][]Loan)
	}
	if s.Transactions == nil {
		s.Transactions = make(map[uint64][]LogEntry)
	}
	for id, acc := range s.Accounts {
		if acc.Loans == nil {
			acc.Loans = []uint64{}
			s.Accounts[id] = acc
		}
	}
}

// Clone returns a deep copy that shares no maps or slices with s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Accounts:     make(map[uint64]Account, len(s.Accounts)),
		Loans:        make(map[uint64][]Loan, len(s.Loans)),
		LoanCounter:  s.LoanCounter,
		Transactions: make(map[uint64][]LogEntry, len(s.Transactions)),
	}
	for id, acc := range s.Accounts {
		out.Accounts[id] = acc.clone()
	}
	for id, loans := range s.Loans {
		out.Loans[id] = append(make([]Loan, 0, len(loans)), loans...)
	}
	for id, entries := range s.Transactions {
		out.Transactions[id] = append(make([]LogEntry, 0, len(entries)), entries...)
	}
	return out
}

// Account returns a copy of the account with the given id.
func (s Snapshot) Account(id uint64) (Account, error) {
	acc, ok := s.Accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acc.clone(), nil
}

// CreateAccount opens an account with an empty loan list.
func (s *Snapshot) CreateAccount(id uint64, balance decimal.Decimal) error {
	if err := CheckAmount(balance); err != nil {
		return err
	}
	if _, ok := s.Accounts[id]; ok {
		return ErrAccountExists
	}
	s.Accounts[id] = Account{ID: id, Balance: balance, Loans: []uint64{}}
	return nil
}

// Debit withdraws amount and appends a debit record.
func (s *Snapshot) Debit(id uint64, amount decimal.Decimal, at time.Time) error {
	if err := CheckAmount(amount); err != nil {
		return err
	}
	acc, ok := s.Accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	if acc.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	acc.Balance = acc.Balance.Sub(amount)
	s.Accounts[id] = acc
	s.appendEntry(id, LogEntry{Type: EntryDebit, Amount: amount, At: at})
	return nil
}

// Credit deposits amount and appends a credit record.
func (s *Snapshot) Credit(id uint64, amount decimal.Decimal, at time.Time) error {
	if err := CheckAmount(amount); err != nil {
		return err
	}
	acc, ok := s.Accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	acc.Balance = acc.Balance.Add(amount)
	s.Accounts[id] = acc
	s.appendEntry(id, LogEntry{Type: EntryCredit, Amount: amount, At: at})
	return nil
}

// RecordTransfer logs a transfer that the coordinator has already settled with
// Debit and Credit calls. No money moves here. Only the sides owned by this
// worker are logged, since the other side may live on a different partition.
// It returns the ids of the accounts that received a record.
func (s *Snapshot) RecordTransfer(from, to uint64, amount decimal.Decimal, at time.Time) ([]uint64, error) {
	if err := CheckAmount(amount); err != nil {
		return nil, err
	}
	_, hasFrom := s.Accounts[from]
	_, hasTo := s.Accounts[to]
	if !hasFrom && !hasTo {
		return nil, ErrAccountNotFound
	}

	var logged []uint64
	if hasFrom {
		dst := to
		s.appendEntry(from, LogEntry{Type: EntryTransferOut, Amount: amount, To: &dst, At: at})
		logged = append(logged, from)
	}
	if hasTo {
		src := from
		s.appendEntry(to, LogEntry{Type: EntryTransferIn, Amount: amount, From: &src, At: at})
		logged = append(logged, to)
	}
	return logged, nil
}

// CreateLoan allocates the next loan id and attaches an active loan to the account.
func (s *Snapshot) CreateLoan(accountID uint64, amount, pending decimal.Decimal, at time.Time) (Loan, error) {
	if err := CheckAmount(amount); err != nil {
		return Loan{}, err
	}
	if err := CheckAmount(pending); err != nil {
		return Loan{}, err
	}
	if pending.GreaterThan(amount) {
		return Loan{}, ErrInvalidAmount
	}
	acc, ok := s.Accounts[accountID]
	if !ok {
		return Loan{}, ErrAccountNotFound
	}

	s.LoanCounter++
	loan := Loan{
		ID:        s.LoanCounter,
		AccountID: accountID,
		Amount:    amount,
		Pending:   pending,
		Status:    LoanActive,
		CreatedAt: at,
	}
	if pending.IsZero() {
		loan.Status = LoanClosed
	}

	s.Loans[accountID] = append(s.Loans[accountID], loan)
	acc.Loans = append(acc.Loans, loan.ID)
	s.Accounts[accountID] = acc
	return loan, nil
}

// PayLoan reduces the pending amount of a loan. The loan closes when nothing
// is pending; a closed loan rejects every further payment.
func (s *Snapshot) PayLoan(accountID, loanID uint64, amount decimal.Decimal) (Loan, error) {
	if err := CheckAmount(amount); err != nil {
		return Loan{}, err
	}
	if _, ok := s.Accounts[accountID]; !ok {
		return Loan{}, ErrAccountNotFound
	}

	loans := s.Loans[accountID]
	for i := range loans {
		if loans[i].ID != loanID {
			continue
		}
		if loans[i].Status == LoanClosed || amount.GreaterThan(loans[i].Pending) {
			return Loan{}, ErrPaymentExceedsPending
		}
		loans[i].Pending = loans[i].Pending.Sub(amount)
		if !loans[i].Pending.IsPositive() {
			loans[i].Pending = decimal.Zero
			loans[i].Status = LoanClosed
		}
		return loans[i], nil
	}
	return Loan{}, ErrLoanNotFound
}

// LoanSummaries reports every loan of the account in creation order.
func (s Snapshot) LoanSummaries(accountID uint64) ([]LoanSummary, error) {
	if _, ok := s.Accounts[accountID]; !ok {
		return nil, ErrAccountNotFound
	}
	out := make([]LoanSummary, 0, len(s.Loans[accountID]))
	for _, loan := range s.Loans[accountID] {
		out = append(out, loan.Summary())
	}
	return out, nil
}

// Audit sums every balance and counts the accounts. The transaction logs are not consulted.
func (s Snapshot) Audit() (decimal.Decimal, int) {
	total := decimal.Zero
	for _, acc := range s.Accounts {
		total = total.Add(acc.Balance)
	}
	return total, len(s.Accounts)
}

// Entries returns a copy of the account's transaction log.
func (s Snapshot) Entries(accountID uint64) []LogEntry {
	return append([]LogEntry(nil), s.Transactions[accountID]...)
}

func (s *Snapshot) appendEntry(id uint64, e LogEntry) {
	s.Transactions[id] = append(s.Transactions[id], e)
}
