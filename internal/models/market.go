// Package models defines the domain entities shared by the pricing engine, the
// lifecycle classifier and the watcher service.
//
// Terminology:
//   - Market: a single binary (YES/NO) question backed by two outcome tokens.
//   - Supply: the outstanding minted amount of an outcome token, in base units
//     (6 decimal places, like USDC).
//
// None of these types carry behaviour that mutates shared state; every derived
// value (price, status) is recomputed from a snapshot on demand.
package models

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidArgument is returned whenever a caller passes a value outside the
// documented domain of an operation (negative or non-finite amounts, malformed
// supplies, unknown sides). It is never used for the zero-reserve fallback.
var ErrInvalidArgument = errors.New("invalid argument")

// Winning token values reported by the settlement layer once a market resolves.
const (
	WinningYes  = "yes"
	WinningNo   = "no"
	WinningNone = "none"
)

// Market is a snapshot of a binary prediction market as reported by the
// settlement indexer. The core only ever reads it.
type Market struct {
	ID               string    `json:"id"`
	PublicKey        string    `json:"public_key,omitempty"`
	Question         string    `json:"question"`
	Category         string    `json:"category"`
	Creator          string    `json:"creator,omitempty"`
	YesTokenMint     string    `json:"yes_token_mint,omitempty"`
	NoTokenMint      string    `json:"no_token_mint,omitempty"`
	YesSupply        uint64    `json:"yes_supply"`        // base units
	NoSupply         uint64    `json:"no_supply"`         // base units
	MarketReserves   uint64    `json:"market_reserves"`   // collateral base units
	InitialLiquidity uint64    `json:"initial_liquidity"` // collateral base units
	CreationTime     time.Time `json:"creation_time"`
	EndTime          time.Time `json:"end_time"`
	Resolved         bool      `json:"resolved"`
	Resolvable       bool      `json:"resolvable"`
	WinningToken     string    `json:"winning_token,omitempty"`
	LastUpdated      time.Time `json:"last_updated"`
}

// Validate checks that all market fields are valid.
func (m *Market) Validate() error {
	if m.ID == "" {
		return errors.New("market ID must not be empty")
	}
	if m.CreationTime.IsZero() {
		return errors.New("creation time must be set")
	}
	if m.EndTime.IsZero() {
		return errors.New("end time must be set")
	}
	switch m.WinningToken {
	case "", WinningYes, WinningNo, WinningNone:
	default:
		return errors.New("winning token must be one of: yes, no, none")
	}
	if m.WinningToken != "" && m.WinningToken != WinningNone && !m.Resolved {
		return errors.New("winning token set on an unresolved market")
	}
	return nil
}

// Reserves returns the supply pair used for pricing.
func (m *Market) Reserves() ReserveState {
	return ReserveState{YesSupply: m.YesSupply, NoSupply: m.NoSupply}
}

// Lifecycle returns the timestamps used for status classification.
func (m *Market) Lifecycle() LifecycleInput {
	return LifecycleInput{
		CreationTime: m.CreationTime,
		EndTime:      m.EndTime,
		Resolved:     m.Resolved,
	}
}

// FilterByCategory returns markets in the given category. An empty category or
// "all" returns the input unchanged.
func FilterByCategory(markets []Market, category string) []Market {
	if category == "" || category == "all" {
		return markets
	}
	var result []Market
	for _, m := range markets {
		if m.Category == category {
			result = append(result, m)
		}
	}
	return result
}

// Search returns markets whose question contains term, case-insensitively.
func Search(markets []Market, term string) []Market {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return markets
	}
	var result []Market
	for _, m := range markets {
		if strings.Contains(strings.ToLower(m.Question), term) {
			result = append(result, m)
		}
	}
	return result
}
