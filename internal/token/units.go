package token

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ParseUnits converts a human amount ("3", "0.25") into base units for a
// token with the given decimals. parseUnits("3", 18) = 3000000000000000000.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}

	scaled := value.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}

	return scaled.BigInt(), nil
}

// FormatUnits renders base units as a human amount
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}

// ToDecimal converts base units to the ledger representation
func ToDecimal(value *big.Int) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, 0)
}

// FromDecimal converts a whole-number ledger amount back to base units
func FromDecimal(value decimal.Decimal) (*big.Int, error) {
	if !value.IsInteger() {
		return nil, fmt.Errorf("amount %s is not a whole number of base units", value.String())
	}
	return value.BigInt(), nil
}
