package pnl

import (
	"math"

	"tradetracker/internal/domain"
)

// Input describes a single position valuation request.
type Input struct {
	EntryPrice     float64
	ReferencePrice float64 // exit price for closed positions, live price for open ones
	Leverage       float64
	MarginSize     float64
	IsLong         bool
}

// Result carries the two derived figures, each rounded to 2 decimal places.
type Result struct {
	PnL           float64 // absolute profit/loss in quote currency
	PnLPercentage float64 // return on margin, leveraged
}

// Compute values a position under the linear-leverage model. It is a pure
// function: degenerate input (zero entry or reference price, zero leverage)
// yields the zero result rather than an error.
//
// PnL is margin-scaled return: the leveraged percentage change is applied
// to marginSize/leverage, not to the leveraged notional.
func Compute(in Input) Result {
	if in.EntryPrice == 0 || in.ReferencePrice == 0 || in.Leverage == 0 {
		return Result{}
	}

	priceDiff := in.ReferencePrice - in.EntryPrice
	if !in.IsLong {
		priceDiff = in.EntryPrice - in.ReferencePrice
	}

	pctChange := (priceDiff / in.EntryPrice) * 100
	leveragedPct := pctChange * in.Leverage

	positionSize := in.MarginSize / in.Leverage
	pnl := (leveragedPct/100+1)*positionSize - positionSize

	return Result{
		PnL:           Round2(pnl),
		PnLPercentage: Round2(leveragedPct),
	}
}

// ValueTrade resolves a trade's reference price and computes its valuation.
// Closed trades always use their frozen exit price, regardless of any live
// observation. Open trades use livePrice when hasLive is true; otherwise the
// trade is not valuable yet and ok is false.
func ValueTrade(t *domain.Trade, livePrice float64, hasLive bool) (Result, bool) {
	in := Input{
		EntryPrice: t.EntryPrice,
		Leverage:   t.Leverage,
		MarginSize: t.MarginSize,
		IsLong:     t.IsLong(),
	}
	if !t.IsOpen() {
		in.ReferencePrice = t.ExitPrice
		return Compute(in), true
	}
	if !hasLive {
		return Result{}, false
	}
	in.ReferencePrice = livePrice
	return Compute(in), true
}

// Total folds the engine over a trade set against a live price map. Open
// trades with no known price contribute nothing. Only the final sum is
// rounded.
func Total(trades []*domain.Trade, prices map[string]float64) float64 {
	var sum float64
	for _, t := range trades {
		live, hasLive := prices[t.Ticker]
		res, ok := ValueTrade(t, live, hasLive)
		if ok {
			sum += res.PnL
		}
	}
	return Round2(sum)
}

// Round2 rounds to 2 decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
