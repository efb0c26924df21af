package models

import "time"

// Price history trade types as reported by the indexer.
const (
	TradeTypeBuyYes  = "BUY_YES"
	TradeTypeSellYes = "SELL_YES"
	TradeTypeBuyNo   = "BUY_NO"
	TradeTypeSellNo  = "SELL_NO"
)

// PriceHistoryEntry is a single raw price observation for one outcome token.
// Price is a decimal string, either in [0,1] or in percent.
type PriceHistoryEntry struct {
	Price     string `json:"price"`
	Timestamp string `json:"timestamp"`
	TradeType string `json:"trade_type"`
}

// TokenPriceHistory wraps the entries for one token.
type TokenPriceHistory struct {
	PriceHistory []PriceHistoryEntry `json:"price_history"`
}

// PriceHistoryResponse is the indexer's raw price history payload.
type PriceHistoryResponse struct {
	YesToken TokenPriceHistory `json:"yes_token"`
	NoToken  TokenPriceHistory `json:"no_token"`
}

// ChartPoint is one merged YES/NO observation.
type ChartPoint struct {
	Timestamp time.Time `json:"timestamp"`
	YesPrice  float64   `json:"yes_price"`
	NoPrice   float64   `json:"no_price"`
}

// PriceSeries is the merged, time-ordered price history of a market.
type PriceSeries struct {
	Points   []ChartPoint `json:"points"`
	MinPrice float64      `json:"min_price"`
	MaxPrice float64      `json:"max_price"`
}
