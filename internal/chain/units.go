package chain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the decimal precision of MON.
const NativeDecimals = 18

// ToWei converts a whole-unit amount ("10", "0.5") into wei. Fractions
// below one wei are truncated.
func ToWei(amount decimal.Decimal) *big.Int {
	return amount.Shift(NativeDecimals).BigInt()
}

// ParseAmount parses a decimal string into wei.
func ParseAmount(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return ToWei(d), nil
}

// FromWei converts wei into whole units.
func FromWei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -NativeDecimals)
}

// FormatAmount renders wei with at most places decimals and a symbol suffix.
func FormatAmount(wei *big.Int, places int32, symbol string) string {
	s := FromWei(wei).Truncate(places).String()
	if symbol == "" {
		return s
	}
	return s + " " + symbol
}
