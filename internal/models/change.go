package models

import (
	"errors"
	"math"
	"time"
)

// Change represents a detected significant YES price move for a market
type Change struct {
	ID         string        `json:"id"`
	MarketID   string        `json:"market_id"`
	Question   string        `json:"question"`
	Magnitude  float64       `json:"magnitude"`
	Direction  string        `json:"direction"` // "increase" or "decrease"
	OldPrice   float64       `json:"old_price"`
	NewPrice   float64       `json:"new_price"`
	TimeWindow time.Duration `json:"time_window"`
	DetectedAt time.Time     `json:"detected_at"`
	// ProbeImpact is the percent price impact of a fixed-size buy on the
	// side that moved, at the current reserves.
	ProbeImpact float64 `json:"probe_impact"`
}

// Validate checks that all change fields are valid
func (c *Change) Validate() error {
	if c.ID == "" {
		return errors.New("change ID must not be empty")
	}
	if c.MarketID == "" {
		return errors.New("market ID must not be empty")
	}
	if c.Magnitude < 0.0 || c.Magnitude > 1.0 {
		return errors.New("magnitude must be between 0.0 and 1.0")
	}

	expectedMagnitude := math.Abs(c.NewPrice - c.OldPrice)
	if math.Abs(c.Magnitude-expectedMagnitude) > 0.001 {
		return errors.New("magnitude must equal |new_price - old_price|")
	}

	if c.Direction != "increase" && c.Direction != "decrease" {
		return errors.New("direction must be 'increase' or 'decrease'")
	}
	if c.OldPrice < 0.0 || c.OldPrice > 1.0 {
		return errors.New("old price must be between 0.0 and 1.0")
	}
	if c.NewPrice < 0.0 || c.NewPrice > 1.0 {
		return errors.New("new price must be between 0.0 and 1.0")
	}
	if c.DetectedAt.After(time.Now()) {
		return errors.New("detected at must not be in the future")
	}
	return nil
}

// Transition records a market moving from one display status to another
// between two observations.
type Transition struct {
	ID         string    `json:"id"`
	MarketID   string    `json:"market_id"`
	Question   string    `json:"question"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	YesPrice   float64   `json:"yes_price"`
	DetectedAt time.Time `json:"detected_at"`
}

// Validate checks that all transition fields are valid
func (t *Transition) Validate() error {
	if t.ID == "" {
		return errors.New("transition ID must not be empty")
	}
	if t.MarketID == "" {
		return errors.New("market ID must not be empty")
	}
	if _, err := ParseStatus(string(t.From)); err != nil {
		return errors.New("from status is invalid")
	}
	if _, err := ParseStatus(string(t.To)); err != nil {
		return errors.New("to status is invalid")
	}
	if t.From == t.To {
		return errors.New("from and to status must differ")
	}
	return nil
}
