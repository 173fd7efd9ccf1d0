package ports

import (
	"context"

	"tradetracker/internal/domain"
)

// TradeStore persists the full trade sequence under a single logical key.
// Save always overwrites the whole sequence; there are no partial updates.
type TradeStore interface {
	// LoadTrades returns the stored trade sequence. An absent or unparseable
	// value yields an empty sequence, not an error.
	LoadTrades(ctx context.Context) ([]*domain.Trade, error)
	// SaveTrades overwrites the stored sequence with the given one.
	SaveTrades(ctx context.Context, trades []*domain.Trade) error
}

// BalanceStore persists the account balance under a single logical key.
type BalanceStore interface {
	// LoadBalance returns the stored balance. An absent or unparseable
	// value yields a zero balance, not an error.
	LoadBalance(ctx context.Context) (*domain.Balance, error)
	// SaveBalance overwrites the stored balance.
	SaveBalance(ctx context.Context, balance *domain.Balance) error
}
