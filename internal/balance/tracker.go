package balance

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"tradetracker/internal/domain"
	"tradetracker/internal/pnl"
	"tradetracker/internal/ports"
)

// Tracker owns the user-entered base balance. Like the trade registry it
// writes through to the store on every edit and keeps the in-memory value
// authoritative when a write fails.
type Tracker struct {
	store  ports.BalanceStore
	logger ports.Logger

	mu      sync.Mutex
	current domain.Balance
}

// New creates a tracker seeded from the store. A load failure degrades to a
// zero balance.
func New(ctx context.Context, store ports.BalanceStore, logger ports.Logger) (*Tracker, error) {
	if store == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for balance tracker")
	}

	t := &Tracker{store: store, logger: logger}

	stored, err := store.LoadBalance(ctx)
	if err != nil {
		logger.Warn(ctx, "Failed to load balance, starting from zero", map[string]interface{}{"error": err.Error()})
		stored = nil
	}
	if stored != nil {
		t.current = *stored
	}
	return t, nil
}

// SetBase records a user edit of the base balance.
func (t *Tracker) SetBase(ctx context.Context, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("balance must be a number: %w", ports.ErrInvalidRequest)
	}
	if amount < 0 {
		return fmt.Errorf("balance cannot be negative: %w", ports.ErrInvalidRequest)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = domain.Balance{
		Amount:      amount,
		LastUpdated: time.Now().UnixMilli(),
	}
	if err := t.store.SaveBalance(ctx, &t.current); err != nil {
		t.logger.Error(ctx, err, "Failed to persist balance, in-memory state kept")
	}
	return nil
}

// Base returns the persisted shape: the user-entered amount and its edit time.
func (t *Tracker) Base() domain.Balance {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Effective derives the display shape from the base balance and the
// aggregate PnL computed by the caller. The derived shape is never persisted.
func (t *Tracker) Effective(aggregatePnL float64) domain.EffectiveBalance {
	base := t.Base()
	return domain.EffectiveBalance{
		Amount:      pnl.Round2(base.Amount + aggregatePnL),
		LastUpdated: base.LastUpdated,
		BaseBalance: base.Amount,
		PnL:         aggregatePnL,
	}
}
