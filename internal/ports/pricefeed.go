package ports

import "context"

// PriceFeed defines the interface for fetching current market prices for a
// set of ticker symbols.
type PriceFeed interface {
	// FetchPrices returns the most recent known price for each requested
	// symbol. Symbols whose request failed (timeout, bad status, malformed
	// body) are simply absent from the result; a partial result is valid
	// and expected. An error is returned only when the entire batch failed,
	// so that the caller can substitute fallback values.
	FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}
