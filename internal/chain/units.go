package chain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// NativeDecimals is the scale of ETH (wei)
	NativeDecimals = 18
	// StableDecimals is the scale of USDC-style tokens (mwei)
	StableDecimals = 6
)

// ToDisplayUnits converts a base-unit amount into display units exactly
func ToDisplayUnits(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

// ToBaseUnits converts a display amount into base units. Anything below
// one base unit is truncated.
func ToBaseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).BigInt()
}

// FormatBalance formats a balance with decimals as a human-readable string
func FormatBalance(balance *big.Int, decimals uint8) string {
	if balance == nil {
		return "0"
	}

	precision := int32(decimals)
	if precision > 6 {
		precision = 6
	}
	return ToDisplayUnits(balance, int32(decimals)).StringFixed(precision)
}
