package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Side identifies one of the two outcome tokens of a binary market.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// ParseSide accepts "yes"/"no" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideYes:
		return SideYes, nil
	case SideNo:
		return SideNo, nil
	}
	return "", fmt.Errorf("%w: unknown side %q", ErrInvalidArgument, s)
}

// Valid reports whether s is SideYes or SideNo.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Label returns "YES" or "NO".
func (s Side) Label() string {
	return strings.ToUpper(string(s))
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// ReserveState is the outstanding minted supply of each outcome token, in base
// units (6 decimal places).
type ReserveState struct {
	YesSupply uint64 `json:"yes_supply"`
	NoSupply  uint64 `json:"no_supply"`
}

// ParseReserveState parses decimal base-unit supplies as reported by the
// settlement layer. Negative or malformed values are rejected.
func ParseReserveState(yesSupply, noSupply string) (ReserveState, error) {
	yes, err := parseSupply(yesSupply)
	if err != nil {
		return ReserveState{}, fmt.Errorf("yes supply: %w", err)
	}
	no, err := parseSupply(noSupply)
	if err != nil {
		return ReserveState{}, fmt.Errorf("no supply: %w", err)
	}
	return ReserveState{YesSupply: yes, NoSupply: no}, nil
}

func parseSupply(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: negative supply %q", ErrInvalidArgument, s)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed supply %q", ErrInvalidArgument, s)
	}
	return v, nil
}

// Total returns the combined supply. The sum is computed in float64 so that
// two near-max supplies cannot overflow.
func (r ReserveState) Total() float64 {
	return float64(r.YesSupply) + float64(r.NoSupply)
}

// IsEmpty reports whether no outcome tokens have been minted yet.
func (r ReserveState) IsEmpty() bool {
	return r.YesSupply == 0 && r.NoSupply == 0
}

// Supply returns the supply of the given side.
func (r ReserveState) Supply(side Side) uint64 {
	if side == SideYes {
		return r.YesSupply
	}
	return r.NoSupply
}

// WithSupply returns a copy of r with the given side's supply replaced.
func (r ReserveState) WithSupply(side Side, supply uint64) ReserveState {
	if side == SideYes {
		r.YesSupply = supply
	} else {
		r.NoSupply = supply
	}
	return r
}

// PriceQuote holds the normalized outcome prices. YesPrice+NoPrice == 1 up to
// floating-point error.
type PriceQuote struct {
	YesPrice float64 `json:"yes_price"`
	NoPrice  float64 `json:"no_price"`
}

// Of returns the price of the given side.
func (q PriceQuote) Of(side Side) float64 {
	if side == SideYes {
		return q.YesPrice
	}
	return q.NoPrice
}

// TradeKind distinguishes buy and sell estimates.
type TradeKind string

const (
	TradeBuy  TradeKind = "buy"
	TradeSell TradeKind = "sell"
)

// ApproximationNotice is attached to every TradeEstimate. Estimates use the
// pre-trade price and are not binding quotes.
const ApproximationNotice = "Estimate only: computed from the current price without simulating " +
	"the AMM curve across the trade. The executed amount may differ, more so for " +
	"trades that are large relative to the market's supply."

// TradeEstimate is the indicative outcome of a hypothetical trade.
//
// For a buy, Amount is collateral and Output is outcome tokens; for a sell,
// Amount is outcome tokens and Output is collateral. PriceImpact is a
// percentage and is only computed for buys.
type TradeEstimate struct {
	Side        Side      `json:"side"`
	Kind        TradeKind `json:"kind"`
	Amount      float64   `json:"amount"`
	Output      float64   `json:"output"`
	Price       float64   `json:"price"`
	PriceImpact float64   `json:"price_impact"`
	Advisory    string    `json:"advisory"`
}
