// Package units converts between on-chain base units (6 decimal fixed point,
// shared by USDC and the outcome tokens) and human-readable decimals.
//
// Conversions to base units always floor so a caller never requests more
// collateral than the user typed. Conversions to human units are exact.
package units

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hetansh2220/Pulse/internal/models"
)

const (
	// Decimals is the number of fractional digits in a base unit amount.
	Decimals = 6
	// Scale is 10^Decimals.
	Scale = 1_000_000
)

// ErrInvalidArgument is returned for negative, non-finite, malformed or
// out-of-range amounts.
var ErrInvalidArgument = models.ErrInvalidArgument

// FromBaseUnits returns n / 10^6 exactly.
func FromBaseUnits(n uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(n), -Decimals)
}

// ToBaseUnits returns floor(d * 10^6).
func ToBaseUnits(d decimal.Decimal) (uint64, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: amount %s is negative", ErrInvalidArgument, d.String())
	}
	scaled := d.Shift(Decimals).Floor().BigInt()
	if !scaled.IsUint64() {
		return 0, fmt.Errorf("%w: amount %s exceeds the base unit range", ErrInvalidArgument, d.String())
	}
	return scaled.Uint64(), nil
}

// ParseUSDC parses a human decimal such as "12.34" into base units.
func ParseUSDC(s string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: malformed amount %q", ErrInvalidArgument, s)
	}
	return ToBaseUnits(d)
}

// USDCFromFloat converts a float amount into base units. The float is first
// read as its shortest decimal representation, so 0.29 becomes 290000 rather
// than the 289999 a naive f*1e6 floor would give.
func USDCFromFloat(f float64) (uint64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: amount is not finite", ErrInvalidArgument)
	}
	if f < 0 {
		return 0, fmt.Errorf("%w: amount %v is negative", ErrInvalidArgument, f)
	}
	return ToBaseUnits(decimal.NewFromFloat(f))
}

// ToFloat returns n in human units as a float64. Use FromBaseUnits where exact
// arithmetic matters.
func ToFloat(n uint64) float64 {
	return FromBaseUnits(n).InexactFloat64()
}
