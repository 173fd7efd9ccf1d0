package app

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"tradetracker/config"
	"tradetracker/internal/balance"
	"tradetracker/internal/domain"
	"tradetracker/internal/export"
	"tradetracker/internal/pnl"
	"tradetracker/internal/ports"
	"tradetracker/internal/registry"
	"tradetracker/internal/view"
)

// Maximum leverage accepted from user input. The data model itself does not
// enforce this; validation happens here, before construction.
const maxLeverage = 125

// Service wires the trade registry, balance tracker and price feed together.
// It owns the live price table, refreshed by the poll loop for the tickers
// of open trades, and exposes the valuation, projection and export
// operations built on top of it.
type Service struct {
	cfg      *config.Config
	logger   ports.Logger
	feed     ports.PriceFeed
	registry *registry.Registry
	balance  *balance.Tracker

	mu            sync.RWMutex
	prices        map[string]float64
	fetchInFlight bool
	baseCtx       context.Context
}

// NewService creates the application service.
func NewService(
	cfg *config.Config,
	logger ports.Logger,
	feed ports.PriceFeed,
	reg *registry.Registry,
	bal *balance.Tracker,
) (*Service, error) {
	if cfg == nil || logger == nil || feed == nil || reg == nil || bal == nil {
		return nil, fmt.Errorf("missing required dependencies for service")
	}
	return &Service{
		cfg:      cfg,
		logger:   logger,
		feed:     feed,
		registry: reg,
		balance:  bal,
		prices:   make(map[string]float64),
		baseCtx:  context.Background(),
	}, nil
}

// Start runs the price poll loop until ctx is canceled. The first batch is
// fetched immediately; afterwards one batch per tick, with at most one
// batch in flight at a time. Ticks are not guaranteed to align exactly when
// a fetch overruns.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.logger.Info(ctx, "Price poll loop started", map[string]interface{}{"interval": s.cfg.PricePollInterval.String()})

	s.RefreshPrices(ctx)

	ticker := time.NewTicker(s.cfg.PricePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Price poll loop stopped")
			return nil
		case <-ticker.C:
			s.RefreshPrices(ctx)
		}
	}
}

// RefreshPrices fetches the current prices for the tickers of open trades
// and merges them into the price table, last observation wins. When the
// whole batch fails, static fallback prices are substituted for well-known
// symbols. Overlapping calls are skipped, keeping at most one batch in
// flight.
func (s *Service) RefreshPrices(ctx context.Context) {
	tickers := s.registry.OpenTickers()
	if len(tickers) == 0 {
		return
	}

	s.mu.Lock()
	if s.fetchInFlight {
		s.mu.Unlock()
		s.logger.Debug(ctx, "Price fetch already in flight, skipping tick")
		return
	}
	s.fetchInFlight = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.fetchInFlight = false
		s.mu.Unlock()
	}()

	prices, err := s.feed.FetchPrices(ctx, tickers)
	if err != nil {
		s.logger.Warn(ctx, "Price batch failed, substituting fallback prices", map[string]interface{}{"tickers": len(tickers), "error": err.Error()})
		prices = make(map[string]float64)
		for _, ticker := range tickers {
			if price, ok := fallbackPrices[ticker]; ok {
				prices[ticker] = price
			}
		}
		if len(prices) == 0 {
			return
		}
	}

	s.mu.Lock()
	for symbol, price := range prices {
		s.prices[symbol] = price
	}
	s.mu.Unlock()
	s.logger.Debug(ctx, "Price table updated", map[string]interface{}{"symbols": len(prices)})
}

// kickRefresh refreshes the price table in the background after the open
// trade set changed, so a newly added ticker does not wait a full poll
// interval for its first price.
func (s *Service) kickRefresh() {
	s.mu.RLock()
	ctx := s.baseCtx
	s.mu.RUnlock()
	go s.RefreshPrices(ctx)
}

// Prices returns a snapshot of the live price table.
func (s *Service) Prices() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.prices))
	for symbol, price := range s.prices {
		out[symbol] = price
	}
	return out
}

// AddTradeParams carries the user input for a new trade.
type AddTradeParams struct {
	Ticker     string
	EntryPrice float64
	Leverage   float64
	MarginSize float64
	IsLong     bool
}

// Validate checks the user input before a trade is constructed, so invalid
// values never reach the valuation pipeline.
func (p AddTradeParams) Validate() error {
	var errs []string

	if strings.TrimSpace(p.Ticker) == "" {
		errs = append(errs, "ticker must not be empty")
	}
	if !isFinite(p.EntryPrice) || p.EntryPrice <= 0 {
		errs = append(errs, "entry price must be a positive number")
	}
	if !isFinite(p.Leverage) || p.Leverage < 1 || p.Leverage > maxLeverage {
		errs = append(errs, fmt.Sprintf("leverage must be between 1 and %d", maxLeverage))
	}
	if !isFinite(p.MarginSize) || p.MarginSize <= 0 {
		errs = append(errs, "margin size must be a positive number")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(errs, "; "), ports.ErrInvalidRequest)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// AddTrade validates the input, records a new open trade and kicks a price
// refresh so the new ticker is valued promptly.
func (s *Service) AddTrade(ctx context.Context, p AddTradeParams) (*domain.Trade, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	direction := domain.Long
	if !p.IsLong {
		direction = domain.Short
	}
	trade := domain.NewTrade(p.Ticker, p.EntryPrice, p.Leverage, p.MarginSize, direction)
	if err := s.registry.Add(ctx, trade); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "Trade added", map[string]interface{}{"id": trade.ID, "ticker": trade.Ticker, "direction": string(trade.Direction)})

	s.kickRefresh()
	return trade, nil
}

// CloseTrade freezes the trade's valuation at exitPrice.
func (s *Service) CloseTrade(ctx context.Context, id string, exitPrice float64) error {
	if !isFinite(exitPrice) || exitPrice <= 0 {
		return fmt.Errorf("exit price must be a positive number: %w", ports.ErrInvalidRequest)
	}
	if err := s.registry.Close(ctx, id, exitPrice); err != nil {
		return err
	}
	s.logger.Info(ctx, "Trade closed", map[string]interface{}{"id": id, "exitPrice": exitPrice})
	return nil
}

// RemoveTrade deletes the trade with the given id.
func (s *Service) RemoveTrade(ctx context.Context, id string) error {
	if err := s.registry.Remove(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "Trade removed", map[string]interface{}{"id": id})
	return nil
}

// Trades returns a snapshot of the raw trade sequence in insertion order.
func (s *Service) Trades() []*domain.Trade {
	return s.registry.All()
}

// TotalPnL folds the valuation engine over all trades against the current
// price table. Closed trades use their frozen exit valuation; open trades
// with no known price contribute nothing.
func (s *Service) TotalPnL() float64 {
	return pnl.Total(s.registry.All(), s.Prices())
}

// SetBalance records a user edit of the base balance.
func (s *Service) SetBalance(ctx context.Context, amount float64) error {
	if err := s.balance.SetBase(ctx, amount); err != nil {
		return err
	}
	s.logger.Info(ctx, "Balance updated", map[string]interface{}{"amount": amount})
	return nil
}

// EffectiveBalance derives the display balance: base balance plus the
// aggregate PnL across all trades.
func (s *Service) EffectiveBalance() domain.EffectiveBalance {
	return s.balance.Effective(s.TotalPnL())
}

// View projects the trade set against the current price table with the
// given ordering and filter.
func (s *Service) View(sortCfg view.SortConfig, filterCfg view.FilterConfig) []*domain.ValuedTrade {
	return view.Project(s.registry.All(), s.Prices(), sortCfg, filterCfg)
}

// ExportCSV writes the projected view to w in CSV form, reflecting exactly
// the rows and order the view shows.
func (s *Service) ExportCSV(w io.Writer, sortCfg view.SortConfig, filterCfg view.FilterConfig) error {
	return export.Write(w, s.View(sortCfg, filterCfg))
}

// FetchPrices exposes the raw feed for the price proxy endpoint. Unlike the
// poll loop it performs no fallback substitution, so upstream failure is
// visible to the proxy's clients.
func (s *Service) FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	return s.feed.FetchPrices(ctx, symbols)
}

// OpenTickers returns the distinct tickers of open trades.
func (s *Service) OpenTickers() []string {
	return s.registry.OpenTickers()
}
