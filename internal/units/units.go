// Package units converts between integer base units and decimal strings.
package units

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimals of ETH (wei per ether = 10^18).
const EtherDecimals = 18

// FromBaseUnits renders value as a decimal string with the given number of
// decimals. Trailing zeros are dropped, so 10^16 wei becomes "0.01".
func FromBaseUnits(value *big.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -decimals).String()
}

// FromBaseUnitsFixed is FromBaseUnits truncated to precision decimal places.
func FromBaseUnitsFixed(value *big.Int, decimals, precision int32) string {
	if value == nil {
		value = new(big.Int)
	}
	return decimal.NewFromBigInt(value, -decimals).Truncate(precision).StringFixed(precision)
}

// ToBaseUnits parses a decimal string into base units. Amounts with more
// fractional digits than decimals are rejected.
func ToBaseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: negative", amount)
	}
	shifted := d.Shift(decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("invalid amount %q: more than %d decimals", amount, decimals)
	}
	return shifted.BigInt(), nil
}

// ParseEther is ToBaseUnits for ETH amounts.
func ParseEther(amount string) (*big.Int, error) {
	return ToBaseUnits(amount, EtherDecimals)
}
