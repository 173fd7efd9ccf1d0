package registry

import (
	"context"
	"fmt"
	"sync"

	"tradetracker/internal/domain"
	"tradetracker/internal/ports"
)

// Registry owns the authoritative ordered trade sequence for the session.
// Every mutation writes the full updated sequence through to the store;
// a failed write is logged and swallowed, since the in-memory state remains
// the source of truth for the session.
type Registry struct {
	store  ports.TradeStore
	logger ports.Logger

	mu     sync.Mutex
	trades []*domain.Trade
}

// New creates a registry seeded from the store. A load failure degrades to
// an empty sequence rather than failing startup.
func New(ctx context.Context, store ports.TradeStore, logger ports.Logger) (*Registry, error) {
	if store == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for trade registry")
	}

	r := &Registry{store: store, logger: logger}

	trades, err := store.LoadTrades(ctx)
	if err != nil {
		logger.Warn(ctx, "Failed to load trades, starting with an empty set", map[string]interface{}{"error": err.Error()})
		trades = nil
	}
	r.trades = trades
	logger.Info(ctx, "Trade registry initialized", map[string]interface{}{"trades": len(trades)})
	return r, nil
}

// Add appends a trade to the sequence. The caller generates the id and
// validates the numeric fields before construction.
func (r *Registry) Add(ctx context.Context, trade *domain.Trade) error {
	if trade == nil {
		return fmt.Errorf("nil trade: %w", ports.ErrInvalidRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.trades {
		if t.ID == trade.ID {
			return fmt.Errorf("trade %q: %w", trade.ID, ports.ErrDuplicateEntry)
		}
	}
	r.trades = append(r.trades, trade)
	r.persist(ctx)
	return nil
}

// Remove deletes the trade with the given id.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, t := range r.trades {
		if t.ID == id {
			r.trades = append(r.trades[:i], r.trades[i+1:]...)
			r.persist(ctx)
			return nil
		}
	}
	return fmt.Errorf("trade %q: %w", id, ports.ErrNotFound)
}

// Close marks the trade as closed at exitPrice, freezing its valuation
// forever. All other fields are left untouched.
func (r *Registry) Close(ctx context.Context, id string, exitPrice float64) error {
	if exitPrice <= 0 {
		return fmt.Errorf("exit price must be positive: %w", ports.ErrInvalidRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.trades {
		if t.ID == id {
			t.ExitPrice = exitPrice
			t.Status = domain.StatusClosed
			r.persist(ctx)
			return nil
		}
	}
	return fmt.Errorf("trade %q: %w", id, ports.ErrNotFound)
}

// All returns a snapshot of the trade sequence in insertion order. The
// returned trades are copies, so later mutations do not leak into callers.
func (r *Registry) All() []*domain.Trade {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.Trade, len(r.trades))
	for i, t := range r.trades {
		clone := *t
		out[i] = &clone
	}
	return out
}

// OpenTickers returns the distinct tickers of open trades, in first-seen
// order. This is the symbol set the price poller refreshes.
func (r *Registry) OpenTickers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(r.trades))
	var tickers []string
	for _, t := range r.trades {
		if !t.IsOpen() {
			continue
		}
		if _, ok := seen[t.Ticker]; ok {
			continue
		}
		seen[t.Ticker] = struct{}{}
		tickers = append(tickers, t.Ticker)
	}
	return tickers
}

// persist writes the full sequence through to the store. Callers must hold
// r.mu.
func (r *Registry) persist(ctx context.Context) {
	if err := r.store.SaveTrades(ctx, r.trades); err != nil {
		r.logger.Error(ctx, err, "Failed to persist trades, in-memory state kept", map[string]interface{}{"trades": len(r.trades)})
	}
}
