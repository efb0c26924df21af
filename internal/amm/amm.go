// Package amm prices the two outcome tokens of a binary market from their
// minted supplies and estimates the result of hypothetical trades.
//
// Prices are share-of-supply:
//
//	yesPrice = yesSupply / (yesSupply + noSupply)
//	noPrice  = noSupply  / (yesSupply + noSupply)
//
// A market with no minted supply prices both sides at 0.5.
//
// Trade estimates are first-order: they use the pre-trade price for the whole
// trade and do not integrate the price movement the trade itself causes. Their
// error grows with the trade size relative to the supplies, so results must be
// shown to users as indicative only (see models.ApproximationNotice). The real
// quote is whatever the settlement program executes.
//
// Every function is pure and safe for concurrent use.
package amm

import (
	"fmt"
	"math"

	"github.com/hetansh2220/Pulse/internal/models"
)

// ErrInvalidArgument is returned for negative, NaN or infinite amounts and for
// unknown sides.
var ErrInvalidArgument = models.ErrInvalidArgument

// neutralPrice is used for both sides while no supply has been minted.
const neutralPrice = 0.5

// MaxImpactSteps bounds the refinement performed by PriceImpactSteps.
const MaxImpactSteps = 1000

// Price converts reserves into normalized outcome prices.
func Price(r models.ReserveState) models.PriceQuote {
	if r.IsEmpty() {
		return models.PriceQuote{YesPrice: neutralPrice, NoPrice: neutralPrice}
	}
	total := r.Total()
	return models.PriceQuote{
		YesPrice: float64(r.YesSupply) / total,
		NoPrice:  float64(r.NoSupply) / total,
	}
}

// EstimateBuy returns the outcome tokens received for usdcAmount of collateral
// at the current price of side. It returns 0 when that price is 0.
func EstimateBuy(usdcAmount float64, side models.Side, r models.ReserveState) (float64, error) {
	if err := validate("usdc amount", usdcAmount, side); err != nil {
		return 0, err
	}
	p := Price(r).Of(side)
	if p == 0 {
		return 0, nil
	}
	return usdcAmount / p, nil
}

// EstimateSell returns the collateral received for tokenAmount outcome tokens
// at the current price of side.
func EstimateSell(tokenAmount float64, side models.Side, r models.ReserveState) (float64, error) {
	if err := validate("token amount", tokenAmount, side); err != nil {
		return 0, err
	}
	return tokenAmount * Price(r).Of(side), nil
}

// PriceImpact returns the percentage change in side's price after buying
// usdcAmount of it. The post-trade state adds floor(EstimateBuy(...)) to side's
// supply and leaves the other side unchanged.
//
// When side's current price is 0 no tokens can be estimated, the projected
// state equals the current one and the impact is reported as 0.
func PriceImpact(usdcAmount float64, side models.Side, r models.ReserveState) (float64, error) {
	if err := validate("usdc amount", usdcAmount, side); err != nil {
		return 0, err
	}
	base := Price(r).Of(side)
	if base == 0 {
		return 0, nil
	}
	projected := addSupply(r, side, usdcAmount/base)
	return impact(base, Price(projected).Of(side)), nil
}

// PriceImpactSteps refines PriceImpact by buying in steps equal chunks and
// re-pricing after each one. The projected state adds floor of the total
// tokens bought. steps <= 1 gives exactly PriceImpact; steps above
// MaxImpactSteps are clamped.
func PriceImpactSteps(usdcAmount float64, side models.Side, r models.ReserveState, steps int) (float64, error) {
	if steps <= 1 {
		return PriceImpact(usdcAmount, side, r)
	}
	if err := validate("usdc amount", usdcAmount, side); err != nil {
		return 0, err
	}
	if steps > MaxImpactSteps {
		steps = MaxImpactSteps
	}

	base := Price(r).Of(side)
	if base == 0 {
		return 0, nil
	}

	// Supplies stay fractional between chunks and the bought total is floored
	// once, so chunks smaller than a token still move the price.
	chunk := usdcAmount / float64(steps)
	own := float64(r.Supply(side))
	other := r.Total() - own
	bought := 0.0
	for i := 0; i < steps; i++ {
		p := neutralPrice
		if own+other > 0 {
			p = own / (own + other)
		}
		if p == 0 {
			break
		}
		tokens := chunk / p
		own += tokens
		bought += tokens
	}
	return impact(base, Price(addSupply(r, side, bought)).Of(side)), nil
}

// EstimateBuyTrade bundles EstimateBuy and PriceImpact into a TradeEstimate.
func EstimateBuyTrade(usdcAmount float64, side models.Side, r models.ReserveState) (models.TradeEstimate, error) {
	tokens, err := EstimateBuy(usdcAmount, side, r)
	if err != nil {
		return models.TradeEstimate{}, err
	}
	pi, err := PriceImpact(usdcAmount, side, r)
	if err != nil {
		return models.TradeEstimate{}, err
	}
	return models.TradeEstimate{
		Side:        side,
		Kind:        models.TradeBuy,
		Amount:      usdcAmount,
		Output:      tokens,
		Price:       Price(r).Of(side),
		PriceImpact: pi,
		Advisory:    models.ApproximationNotice,
	}, nil
}

// EstimateSellTrade wraps EstimateSell into a TradeEstimate. Sells carry no
// price impact figure.
func EstimateSellTrade(tokenAmount float64, side models.Side, r models.ReserveState) (models.TradeEstimate, error) {
	usdc, err := EstimateSell(tokenAmount, side, r)
	if err != nil {
		return models.TradeEstimate{}, err
	}
	return models.TradeEstimate{
		Side:     side,
		Kind:     models.TradeSell,
		Amount:   tokenAmount,
		Output:   usdc,
		Price:    Price(r).Of(side),
		Advisory: models.ApproximationNotice,
	}, nil
}

func validate(name string, amount float64, side models.Side) error {
	if !side.Valid() {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidArgument, side)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: %s is not finite", ErrInvalidArgument, name)
	}
	if amount < 0 {
		return fmt.Errorf("%w: %s must not be negative, got %v", ErrInvalidArgument, name, amount)
	}
	return nil
}

// addSupply adds floor(tokens) to side's supply, saturating at MaxUint64.
func addSupply(r models.ReserveState, side models.Side, tokens float64) models.ReserveState {
	add := math.Floor(tokens)
	supply := r.Supply(side)
	headroom := math.MaxUint64 - supply
	if add >= float64(headroom) {
		return r.WithSupply(side, math.MaxUint64)
	}
	return r.WithSupply(side, supply+uint64(add))
}

func impact(base, next float64) float64 {
	return (next - base) / base * 100
}
