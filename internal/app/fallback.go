package app

// fallbackPrices holds last-known, order-of-magnitude prices for well-known
// symbols. They are substituted only when an entire fetch batch fails, so
// valuation degrades to stale-but-plausible data instead of silently
// treating "no price" as "zero price". Symbols not listed here stay
// unpriced and their trades remain unvalued.
var fallbackPrices = map[string]float64{
	"BTCUSDT":  97000,
	"ETHUSDT":  3500,
	"BNBUSDT":  650,
	"SOLUSDT":  180,
	"XRPUSDT":  2.2,
	"ADAUSDT":  0.95,
	"DOGEUSDT": 0.32,
}
