package domain

// MarketPrice is the price feed's native shape: the price arrives as a
// string-encoded decimal and is parsed to a float before use.
type MarketPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}
