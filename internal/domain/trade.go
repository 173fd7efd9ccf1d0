package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Direction indicates which way a position bets.
type Direction string

const (
	Long  Direction = "long"  // profits when the price rises
	Short Direction = "short" // profits when the price falls
)

// Label returns the display form of the direction ("Long" or "Short").
func (d Direction) Label() string {
	if d == Short {
		return "Short"
	}
	return "Long"
}

// PositionStatus represents the lifecycle state of a trade.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// Trade represents a leveraged position recorded by the user.
// A trade is immutable after creation except for the close transition,
// which sets ExitPrice and flips Status to StatusClosed.
type Trade struct {
	ID         string         // Unique identifier, generated at creation
	Ticker     string         // Uppercase symbol (e.g., "BTCUSDT")
	EntryPrice float64        // Price at position open
	ExitPrice  float64        // Price at position close; meaningful only when Status is StatusClosed
	Leverage   float64        // Leverage multiplier (>= 1)
	MarginSize float64        // Capital committed before leverage
	Direction  Direction      // Long or short
	Status     PositionStatus // Open or closed
	Timestamp  int64          // Creation time, milliseconds since epoch
}

// IsOpen reports whether the trade is still valued against the live price.
func (t *Trade) IsOpen() bool {
	return t.Status != StatusClosed
}

// IsLong reports whether the trade profits from a price increase.
func (t *Trade) IsLong() bool {
	return t.Direction != Short
}

// NewTrade builds an open trade with a fresh id and creation timestamp.
// The ticker is normalized to uppercase. Input validation (positive prices,
// leverage bounds) happens before construction, not here.
func NewTrade(ticker string, entryPrice, leverage, marginSize float64, direction Direction) *Trade {
	return &Trade{
		ID:         uuid.NewString(),
		Ticker:     strings.ToUpper(strings.TrimSpace(ticker)),
		EntryPrice: entryPrice,
		Leverage:   leverage,
		MarginSize: marginSize,
		Direction:  direction,
		Status:     StatusOpen,
		Timestamp:  time.Now().UnixMilli(),
	}
}

// ValuedTrade is a Trade annotated with the fields derived on every
// valuation pass. It is an ephemeral display projection and is never
// persisted. A nil pointer means "not yet valued", which is distinct
// from a real zero.
type ValuedTrade struct {
	Trade
	CurrentPrice  *float64
	PnL           *float64
	PnLPercentage *float64
}
