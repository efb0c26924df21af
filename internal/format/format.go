// Package format renders prices, amounts and times for display. Output is
// locale-independent and deterministic: rounding goes through decimal
// arithmetic (half away from zero) instead of binary float formatting, so the
// same input always renders the same string.
package format

import (
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/hetansh2220/Pulse/internal/units"
)

// invalid is rendered for NaN and infinite inputs.
const invalid = "—"

// Currency formats amount as US dollars with thousands separators, e.g.
// "$1,234.56" or "-$3.00".
func Currency(amount float64, decimals int) string {
	if !finite(amount) {
		return invalid
	}
	return currency(decimal.NewFromFloat(amount), decimals)
}

// USDC formats a base-unit collateral amount as dollars with two decimals.
func USDC(baseUnits uint64) string {
	return currency(units.FromBaseUnits(baseUnits), 2)
}

// Dollars formats an exact collateral amount, such as a sum of
// units.FromBaseUnits values.
func Dollars(d decimal.Decimal, decimals int) string {
	return currency(d, decimals)
}

// CompactCurrency formats amount as dollars with a K/M/B suffix, e.g. "$1.2K".
func CompactCurrency(amount float64) string {
	if !finite(amount) {
		return invalid
	}
	if amount < 0 {
		return "-$" + Compact(-amount)
	}
	return "$" + Compact(amount)
}

// Percent formats value (already in percent) with the given decimals. With
// showSign, positive values get a leading "+".
func Percent(value float64, decimals int, showSign bool) string {
	if !finite(value) {
		return invalid
	}
	d := decimal.NewFromFloat(value).Round(int32(decimals))
	sign := ""
	if showSign && d.IsPositive() {
		sign = "+"
	}
	return sign + d.StringFixed(int32(decimals)) + "%"
}

// Price formats a [0,1] price in cents, e.g. 0.65 -> "65.0¢".
func Price(p float64) string {
	if !finite(p) {
		return invalid
	}
	return decimal.NewFromFloat(p).Shift(2).StringFixed(1) + "¢"
}

// TokenPrice formats a [0,1] price in dollars, e.g. 0.1648 -> "$0.1648".
func TokenPrice(p float64, decimals int) string {
	if !finite(p) {
		return invalid
	}
	return "$" + decimal.NewFromFloat(p).StringFixed(int32(decimals))
}

// Probability formats a [0,1] price as a percentage, e.g. 0.65 -> "65.0%".
func Probability(p float64, decimals int) string {
	if !finite(p) {
		return invalid
	}
	return decimal.NewFromFloat(p).Shift(2).StringFixed(int32(decimals)) + "%"
}

var compactSteps = []struct {
	threshold float64
	suffix    string
}{
	{1e9, "B"},
	{1e6, "M"},
	{1e3, "K"},
}

// Compact formats v with one decimal and a K/M/B suffix. Values below 1000
// are rounded to an integer.
func Compact(v float64) string {
	if !finite(v) {
		return invalid
	}
	if v < 0 {
		return "-" + Compact(-v)
	}
	d := decimal.NewFromFloat(v)
	for _, step := range compactSteps {
		if v >= step.threshold {
			return d.Div(decimal.NewFromFloat(step.threshold)).StringFixed(1) + step.suffix
		}
	}
	return d.StringFixed(0)
}

// TimeAgo renders t relative to now, e.g. "3 hours ago".
func TimeAgo(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// TimeRemaining renders the time left until end, or "Ended" once end has been
// reached.
func TimeRemaining(end, now time.Time) string {
	if !end.After(now) {
		return "Ended"
	}
	return strings.TrimSpace(humanize.RelTime(now, end, "", ""))
}

// DateTime renders t as an absolute UTC timestamp.
func DateTime(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006, 3:04 PM UTC")
}

// Address shortens an on-chain address to its first and last chars
// characters.
func Address(addr string, chars int) string {
	r := []rune(addr)
	if chars <= 0 || len(r) <= chars*2 {
		return addr
	}
	return string(r[:chars]) + "..." + string(r[len(r)-chars:])
}

// Truncate shortens text to maxLength runes followed by "...".
func Truncate(text string, maxLength int) string {
	r := []rune(text)
	if len(r) <= maxLength {
		return text
	}
	return string(r[:maxLength]) + "..."
}

// PnLDisplay is a formatted profit-and-loss figure with its direction.
type PnLDisplay struct {
	Value      string
	IsPositive bool
	IsNegative bool
	IsNeutral  bool
}

// PnL formats a profit-and-loss amount in dollars.
func PnL(pnl float64, showSign bool) PnLDisplay {
	value := Currency(pnl, 2)
	if showSign && pnl > 0 {
		value = "+" + value
	}
	return PnLDisplay{
		Value:      value,
		IsPositive: pnl > 0,
		IsNegative: pnl < 0,
		IsNeutral:  pnl == 0,
	}
}

func currency(d decimal.Decimal, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	rounded := d.Round(int32(decimals))
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
	}
	return sign + "$" + grouped(rounded.Abs().StringFixed(int32(decimals)))
}

// grouped inserts thousands separators into the integer part of a plain
// decimal string.
func grouped(s string) string {
	intPart, frac, hasFrac := strings.Cut(s, ".")
	n, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return s
	}
	out := humanize.BigComma(n)
	if hasFrac {
		out += "." + frac
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
