package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus is Active until the pending amount reaches zero, then Closed for good.
type LoanStatus string

const (
	LoanActive LoanStatus = "Active"
	LoanClosed LoanStatus = "Closed"
)

// Loan is a loan taken by an account.
type Loan struct {
	ID        uint64          `json:"id"`
	AccountID uint64          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Pending   decimal.Decimal `json:"pending"`
	Status    LoanStatus      `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// Paid returns the part of the principal already repaid.
func (l Loan) Paid() decimal.Decimal {
	return l.Amount.Sub(l.Pending)
}

// LoanSummary is the payment status of one loan as reported to the coordinator.
type LoanSummary struct {
	LoanID  uint64          `json:"id_prestamo"`
	Total   decimal.Decimal `json:"monto_total"`
	Paid    decimal.Decimal `json:"monto_pagado"`
	Pending decimal.Decimal `json:"monto_pendiente"`
	Status  LoanStatus      `json:"estado"`
}

// Summary converts the loan into its reported form.
func (l Loan) Summary() LoanSummary {
	return LoanSummary{
		LoanID:  l.ID,
		Total:   l.Amount,
		Paid:    l.Paid(),
		Pending: l.Pending,
		Status:  l.Status,
	}
}
