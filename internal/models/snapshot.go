package models

import (
	"errors"
	"time"
)

// Snapshot represents a point-in-time price reading for a market
type Snapshot struct {
	ID        string    `json:"id"`
	MarketID  string    `json:"market_id"`
	YesSupply uint64    `json:"yes_supply"`
	NoSupply  uint64    `json:"no_supply"`
	YesPrice  float64   `json:"yes_price"`
	NoPrice   float64   `json:"no_price"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Validate checks that all snapshot fields are valid
func (s *Snapshot) Validate() error {
	if s.ID == "" {
		return errors.New("snapshot ID must not be empty")
	}
	if s.MarketID == "" {
		return errors.New("market ID must not be empty")
	}
	if s.YesPrice < 0.0 || s.YesPrice > 1.0 {
		return errors.New("yes price must be between 0.0 and 1.0")
	}
	if s.NoPrice < 0.0 || s.NoPrice > 1.0 {
		return errors.New("no price must be between 0.0 and 1.0")
	}
	if _, err := ParseStatus(string(s.Status)); err != nil {
		return errors.New("status must be one of: upcoming, active, ended, resolved")
	}
	if s.Timestamp.After(time.Now()) {
		return errors.New("timestamp must not be in the future")
	}
	if s.Source == "" {
		return errors.New("source must not be empty")
	}
	return nil
}
