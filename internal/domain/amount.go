package domain

import "github.com/shopspring/decimal"

// Bounds on accepted amounts. Decimal arithmetic and encoding cost grow with
// the exponent, so an amount like 1e50000000 is rejected up front.
const (
	// MaxAmountScale is the maximum number of fractional digits.
	MaxAmountScale = 18
	// MaxAmountIntegerDigits is the maximum number of integer digits.
	MaxAmountIntegerDigits = 30
)

// CheckAmount returns ErrInvalidAmount for negative amounts and for amounts
// outside the scale and magnitude bounds.
func CheckAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return ErrInvalidAmount
	}
	exp := int64(d.Exponent())
	if exp < -MaxAmountScale {
		return ErrInvalidAmount
	}
	if int64(d.NumDigits())+exp > MaxAmountIntegerDigits {
		return ErrInvalidAmount
	}
	return nil
}
