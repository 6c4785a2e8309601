package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ValidateAmount enforces the gateway amount rules on a major-unit amount:
// it must not exceed the configured ceiling and must survive the ×100
// scaling to minor units without loss, which rejects three or more
// fractional digits.
func ValidateAmount(amount decimal.Decimal, ceiling int64) error {
	if amount.GreaterThan(decimal.NewFromInt(ceiling)) {
		return NewSystemError("payment amount exceeds the configured maximum", amount.String())
	}
	if !amount.Mul(hundred).IsInteger() {
		return NewSystemError("payment amount has more than two fractional digits", amount.String())
	}
	return nil
}

// MinorUnits converts a major-unit amount to the integer minor units the
// wire format expects (e.g. 123.00 -> 12300).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
