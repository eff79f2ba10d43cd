package bank

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// amountPlaces is the currency precision used for balances and ledger entries.
const amountPlaces = 2

// Bounds on accepted amounts. Anything outside them is rejected before
// rounding, which would otherwise expand a huge exponent into a huge integer.
const (
	maxIntegerDigits  = 15
	maxFractionDigits = 18
)

// ParseAmount parses a currency amount such as "12.34".
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(strings.TrimLeft(s, "+-"))
	if strings.HasPrefix(lower, "nan") || strings.HasPrefix(lower, "inf") {
		return decimal.Zero, fmt.Errorf("%w: %q is not finite", ErrInvalidAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	return normalizeAmount(d)
}

// normalizeAmount rejects negative amounts and rounds half-up to cents, so
// the balance and the ledger entry always carry the same value.
func normalizeAmount(d decimal.Decimal) (decimal.Decimal, error) {
	exp := int64(d.Exponent())
	if exp < -maxFractionDigits {
		return decimal.Zero, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, maxFractionDigits)
	}
	if int64(d.NumDigits())+exp > maxIntegerDigits {
		return decimal.Zero, fmt.Errorf("%w: more than %d integer digits", ErrInvalidAmount, maxIntegerDigits)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, d)
	}
	return d.Round(amountPlaces), nil
}
