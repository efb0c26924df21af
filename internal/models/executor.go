package models

import "context"

// TradeReceipt is what a settlement layer reports after executing a trade.
type TradeReceipt struct {
	Signature string `json:"signature"`
	// Amount received, in base units of the output token.
	AmountOut uint64 `json:"amount_out"`
}

// TradeExecutor is the settlement layer that actually moves tokens. Market
// version handling (v1/v2/v3 programs) lives behind it. Pricing and lifecycle
// code never calls it; callers gate it with lifecycle.IsTradable and show
// amm estimates alongside.
type TradeExecutor interface {
	// Buy spends collateral (base units) on the given side.
	Buy(ctx context.Context, marketID string, side Side, collateral uint64) (TradeReceipt, error)
	// Sell returns outcome tokens (base units) for collateral.
	Sell(ctx context.Context, marketID string, side Side, tokens uint64) (TradeReceipt, error)
	// Redeem claims winnings on a resolved market.
	Redeem(ctx context.Context, marketID string) (TradeReceipt, error)
}
