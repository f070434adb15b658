package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// USDCDecimals is the fixed-point precision of the payment asset.
const USDCDecimals = 6

// Payment amount bounds in USD.
const (
	MinAmount = 0.01
	MaxAmount = 10000
)

// ParseUSDAmount parses a decimal USD amount string and enforces the
// service bounds. The caller has already schema-validated the format.
func ParseUSDAmount(amount string) (decimal.Decimal, error) {
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount format: %w", err)
	}
	if dec.LessThan(decimal.NewFromFloat(MinAmount)) {
		return decimal.Decimal{}, fmt.Errorf("minimum amount is $%v", MinAmount)
	}
	if dec.GreaterThan(decimal.NewFromInt(MaxAmount)) {
		return decimal.Decimal{}, fmt.Errorf("maximum amount is $%v", MaxAmount)
	}
	return dec, nil
}

// USDToAtomicUnits converts a USD amount to USDC atomic units as an
// integer string. Fractions below the sixth decimal place are truncated,
// matching the quoting behavior of the challenge handler.
func USDToAtomicUnits(usd decimal.Decimal) string {
	return usd.Shift(USDCDecimals).Truncate(0).String()
}

// AtomicUnitsToUSD converts an atomic-unit integer string back to a USD
// decimal. Returns an error for non-integer input.
func AtomicUnitsToUSD(atomic string) (decimal.Decimal, error) {
	dec, err := decimal.NewFromString(atomic)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid atomic amount: %w", err)
	}
	if !dec.IsInteger() {
		return decimal.Decimal{}, fmt.Errorf("atomic amount must be an integer: %s", atomic)
	}
	return dec.Shift(-USDCDecimals), nil
}
