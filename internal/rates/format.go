package rates

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// ToDecimal renders a RAY-scaled quantity as a unit-scale decimal.
func ToDecimal(x *uint256.Int) decimal.Decimal {
	return decimal.NewFromBigInt(x.ToBig(), -27)
}

// FromDecimal converts a unit-scale decimal into RAY units, truncating
// anything below 10^-27.
func FromDecimal(d decimal.Decimal) (uint256.Int, error) {
	if d.Sign() < 0 {
		return uint256.Int{}, ErrOverflow
	}
	scaled := d.Shift(27).Truncate(0)
	out, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return uint256.Int{}, ErrOverflow
	}
	return *out, nil
}
