package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradetracker/config"
	"tradetracker/internal/balance"
	"tradetracker/internal/domain"
	"tradetracker/internal/ports"
	"tradetracker/internal/registry"
	"tradetracker/internal/view"
)

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// mockFeed serves prices from a fixed table, or fails every batch when
// failAll is set. Access is synchronized because the service refreshes in
// the background after trade changes.
type mockFeed struct {
	mu      sync.Mutex
	prices  map[string]float64
	failAll bool
	calls   int
}

func (f *mockFeed) FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll {
		return nil, fmt.Errorf("feed down: %w", ports.ErrFeedUnavailable)
	}
	out := make(map[string]float64)
	for _, s := range symbols {
		if p, ok := f.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

func (f *mockFeed) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memoryTradeStore struct {
	mu     sync.Mutex
	trades []*domain.Trade
}

func (s *memoryTradeStore) LoadTrades(ctx context.Context) ([]*domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trades, nil
}

func (s *memoryTradeStore) SaveTrades(ctx context.Context, trades []*domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = trades
	return nil
}

type memoryBalanceStore struct {
	mu      sync.Mutex
	balance domain.Balance
}

func (s *memoryBalanceStore) LoadBalance(ctx context.Context) (*domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.balance
	return &b, nil
}

func (s *memoryBalanceStore) SaveBalance(ctx context.Context, balance *domain.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = *balance
	return nil
}

func newTestService(t *testing.T, feed ports.PriceFeed) *Service {
	t.Helper()
	ctx := context.Background()
	logger := noopLogger{}

	reg, err := registry.New(ctx, &memoryTradeStore{}, logger)
	require.NoError(t, err)
	bal, err := balance.New(ctx, &memoryBalanceStore{}, logger)
	require.NoError(t, err)

	cfg := &config.Config{PricePollInterval: time.Hour}
	svc, err := NewService(cfg, logger, feed, reg, bal)
	require.NoError(t, err)
	return svc
}

func addTrade(t *testing.T, svc *Service, ticker string, entry float64, isLong bool) *domain.Trade {
	t.Helper()
	trade, err := svc.AddTrade(context.Background(), AddTradeParams{
		Ticker:     ticker,
		EntryPrice: entry,
		Leverage:   10,
		MarginSize: 1000,
		IsLong:     isLong,
	})
	require.NoError(t, err)
	return trade
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestAddTradeValidation(t *testing.T) {
	tests := []struct {
		name   string
		params AddTradeParams
	}{
		{"empty ticker", AddTradeParams{Ticker: "  ", EntryPrice: 100, Leverage: 10, MarginSize: 100, IsLong: true}},
		{"zero entry price", AddTradeParams{Ticker: "BTCUSDT", EntryPrice: 0, Leverage: 10, MarginSize: 100, IsLong: true}},
		{"negative entry price", AddTradeParams{Ticker: "BTCUSDT", EntryPrice: -5, Leverage: 10, MarginSize: 100, IsLong: true}},
		{"leverage below one", AddTradeParams{Ticker: "BTCUSDT", EntryPrice: 100, Leverage: 0.5, MarginSize: 100, IsLong: true}},
		{"leverage above maximum", AddTradeParams{Ticker: "BTCUSDT", EntryPrice: 100, Leverage: maxLeverage + 1, MarginSize: 100, IsLong: true}},
		{"zero margin", AddTradeParams{Ticker: "BTCUSDT", EntryPrice: 100, Leverage: 10, MarginSize: 0, IsLong: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, &mockFeed{})
			_, err := svc.AddTrade(context.Background(), tt.params)
			assert.ErrorIs(t, err, ports.ErrInvalidRequest)
			assert.Empty(t, svc.Trades())
		})
	}
}

func TestAddTradeNormalizesTickerAndKicksRefresh(t *testing.T) {
	feed := &mockFeed{prices: map[string]float64{"BTCUSDT": 31000}}
	svc := newTestService(t, feed)

	trade := addTrade(t, svc, " btcusdt ", 30000, true)
	assert.Equal(t, "BTCUSDT", trade.Ticker)

	// The background refresh fills the price table without waiting for a
	// poll tick.
	assert.Eventually(t, func() bool {
		return svc.Prices()["BTCUSDT"] == 31000
	}, time.Second, 10*time.Millisecond)
}

func TestRefreshPricesSubstitutesFallbacks(t *testing.T) {
	feed := &mockFeed{failAll: true}
	svc := newTestService(t, feed)

	addTrade(t, svc, "BTCUSDT", 30000, true)
	addTrade(t, svc, "UNKNOWNUSDT", 10, true)

	svc.RefreshPrices(context.Background())

	assert.Eventually(t, func() bool {
		prices := svc.Prices()
		_, ok := prices["BTCUSDT"]
		return ok
	}, time.Second, 10*time.Millisecond)

	prices := svc.Prices()
	assert.Equal(t, fallbackPrices["BTCUSDT"], prices["BTCUSDT"])
	// Symbols with no fallback entry simply stay unpriced.
	assert.NotContains(t, prices, "UNKNOWNUSDT")
}

func TestRefreshPricesSkipsWhenNoOpenTrades(t *testing.T) {
	feed := &mockFeed{prices: map[string]float64{"BTCUSDT": 31000}}
	svc := newTestService(t, feed)

	svc.RefreshPrices(context.Background())
	assert.Zero(t, feed.callCount())
}

func TestCloseTradeFreezesValuation(t *testing.T) {
	feed := &mockFeed{prices: map[string]float64{"BTCUSDT": 31000}}
	svc := newTestService(t, feed)

	trade := addTrade(t, svc, "BTCUSDT", 30000, true)
	svc.RefreshPrices(context.Background())

	// entry 30000, exit 32000, 10x on 1000 margin: +66.67.
	require.NoError(t, svc.CloseTrade(context.Background(), trade.ID, 32000))

	assert.InDelta(t, 66.67, svc.TotalPnL(), 0.001)

	rows := svc.View(view.DefaultSort(), view.FilterConfig{})
	require.Len(t, rows, 1)
	assert.False(t, rows[0].IsOpen())
	// Closed trades no longer track the live price.
	assert.Nil(t, rows[0].CurrentPrice)
}

func TestCloseTradeValidation(t *testing.T) {
	svc := newTestService(t, &mockFeed{})
	trade := addTrade(t, svc, "BTCUSDT", 30000, true)

	assert.ErrorIs(t, svc.CloseTrade(context.Background(), trade.ID, 0), ports.ErrInvalidRequest)
	assert.ErrorIs(t, svc.CloseTrade(context.Background(), trade.ID, -1), ports.ErrInvalidRequest)
	assert.ErrorIs(t, svc.CloseTrade(context.Background(), "no-such-id", 100), ports.ErrNotFound)
}

func TestRemoveTrade(t *testing.T) {
	svc := newTestService(t, &mockFeed{})
	trade := addTrade(t, svc, "BTCUSDT", 30000, true)

	require.NoError(t, svc.RemoveTrade(context.Background(), trade.ID))
	assert.Empty(t, svc.Trades())
	assert.ErrorIs(t, svc.RemoveTrade(context.Background(), trade.ID), ports.ErrNotFound)
}

func TestEffectiveBalance(t *testing.T) {
	feed := &mockFeed{prices: map[string]float64{"BTCUSDT": 31000}}
	svc := newTestService(t, feed)

	require.NoError(t, svc.SetBalance(context.Background(), 5000))
	addTrade(t, svc, "BTCUSDT", 30000, true)
	svc.RefreshPrices(context.Background())

	assert.Eventually(t, func() bool {
		return svc.Prices()["BTCUSDT"] == 31000
	}, time.Second, 10*time.Millisecond)

	eff := svc.EffectiveBalance()
	assert.Equal(t, 5000.0, eff.BaseBalance)
	assert.InDelta(t, 33.33, eff.PnL, 0.001)
	assert.InDelta(t, 5033.33, eff.Amount, 0.001)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	svc := newTestService(t, &mockFeed{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poll loop did not stop after cancellation")
	}
}

func TestExportCSVReflectsView(t *testing.T) {
	feed := &mockFeed{prices: map[string]float64{"BTCUSDT": 31000, "ETHUSDT": 2000}}
	svc := newTestService(t, feed)

	addTrade(t, svc, "BTCUSDT", 30000, true)
	addTrade(t, svc, "ETHUSDT", 1900, false)

	var buf bytes.Buffer
	filter := view.FilterConfig{Ticker: "btc"}
	require.NoError(t, svc.ExportCSV(&buf, view.DefaultSort(), filter))

	parsed, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	// Header plus the single row matching the filter.
	require.Len(t, parsed, 2)
	assert.Equal(t, "BTCUSDT", parsed[1][0])
}
