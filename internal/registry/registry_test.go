package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradetracker/internal/domain"
	"tradetracker/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	errorMsgs []string
	warnMsgs  []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

// mockTradeStore implements ports.TradeStore for testing
type mockTradeStore struct {
	loaded    []*domain.Trade
	loadErr   error
	saveErr   error
	saveCalls int
	lastSaved []*domain.Trade
}

func (m *mockTradeStore) LoadTrades(ctx context.Context) ([]*domain.Trade, error) {
	return m.loaded, m.loadErr
}

func (m *mockTradeStore) SaveTrades(ctx context.Context, trades []*domain.Trade) error {
	m.saveCalls++
	m.lastSaved = append([]*domain.Trade(nil), trades...)
	return m.saveErr
}

func newTrade(id, ticker string) *domain.Trade {
	return &domain.Trade{
		ID:         id,
		Ticker:     ticker,
		EntryPrice: 100,
		Leverage:   5,
		MarginSize: 500,
		Direction:  domain.Long,
		Status:     domain.StatusOpen,
		Timestamp:  1,
	}
}

func TestNewSeedsFromStore(t *testing.T) {
	store := &mockTradeStore{loaded: []*domain.Trade{newTrade("a", "BTCUSDT")}}
	reg, err := New(context.Background(), store, &mockLogger{})
	require.NoError(t, err)
	assert.Len(t, reg.All(), 1)
}

func TestNewDegradesToEmptyOnLoadFailure(t *testing.T) {
	store := &mockTradeStore{loadErr: errors.New("disk on fire")}
	logger := &mockLogger{}
	reg, err := New(context.Background(), store, logger)
	require.NoError(t, err)
	assert.Empty(t, reg.All())
	assert.NotEmpty(t, logger.warnMsgs)
}

func TestAddPersistsFullSequence(t *testing.T) {
	store := &mockTradeStore{}
	reg, err := New(context.Background(), store, &mockLogger{})
	require.NoError(t, err)

	require.NoError(t, reg.Add(context.Background(), newTrade("a", "BTCUSDT")))
	require.NoError(t, reg.Add(context.Background(), newTrade("b", "ETHUSDT")))

	assert.Equal(t, 2, store.saveCalls)
	assert.Len(t, store.lastSaved, 2)
}

func TestAddRejectsDuplicateID(t *testing.T) {
	reg, err := New(context.Background(), &mockTradeStore{}, &mockLogger{})
	require.NoError(t, err)

	require.NoError(t, reg.Add(context.Background(), newTrade("a", "BTCUSDT")))
	err = reg.Add(context.Background(), newTrade("a", "ETHUSDT"))
	assert.ErrorIs(t, err, ports.ErrDuplicateEntry)
	assert.Len(t, reg.All(), 1)
}

func TestRemove(t *testing.T) {
	store := &mockTradeStore{}
	reg, err := New(context.Background(), store, &mockLogger{})
	require.NoError(t, err)

	require.NoError(t, reg.Add(context.Background(), newTrade("a", "BTCUSDT")))
	require.NoError(t, reg.Remove(context.Background(), "a"))
	assert.Empty(t, reg.All())

	err = reg.Remove(context.Background(), "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestClose(t *testing.T) {
	reg, err := New(context.Background(), &mockTradeStore{}, &mockLogger{})
	require.NoError(t, err)
	require.NoError(t, reg.Add(context.Background(), newTrade("a", "BTCUSDT")))

	require.NoError(t, reg.Close(context.Background(), "a", 120))

	got := reg.All()[0]
	assert.Equal(t, domain.StatusClosed, got.Status)
	assert.Equal(t, 120.0, got.ExitPrice)
	// Everything else is untouched.
	assert.Equal(t, 100.0, got.EntryPrice)
	assert.Equal(t, "BTCUSDT", got.Ticker)
}

func TestCloseValidation(t *testing.T) {
	reg, err := New(context.Background(), &mockTradeStore{}, &mockLogger{})
	require.NoError(t, err)
	require.NoError(t, reg.Add(context.Background(), newTrade("a", "BTCUSDT")))

	assert.ErrorIs(t, reg.Close(context.Background(), "a", 0), ports.ErrInvalidRequest)
	assert.ErrorIs(t, reg.Close(context.Background(), "a", -5), ports.ErrInvalidRequest)
	assert.ErrorIs(t, reg.Close(context.Background(), "missing", 120), ports.ErrNotFound)
}

func TestPersistFailureKeepsInMemoryState(t *testing.T) {
	store := &mockTradeStore{saveErr: errors.New("disk full")}
	logger := &mockLogger{}
	reg, err := New(context.Background(), store, logger)
	require.NoError(t, err)

	// The mutation succeeds even though the write-through failed.
	require.NoError(t, reg.Add(context.Background(), newTrade("a", "BTCUSDT")))
	assert.Len(t, reg.All(), 1)
	assert.NotEmpty(t, logger.errorMsgs)
}

func TestAllReturnsCopies(t *testing.T) {
	reg, err := New(context.Background(), &mockTradeStore{}, &mockLogger{})
	require.NoError(t, err)
	require.NoError(t, reg.Add(context.Background(), newTrade("a", "BTCUSDT")))

	snapshot := reg.All()
	snapshot[0].EntryPrice = 999999

	assert.Equal(t, 100.0, reg.All()[0].EntryPrice)
}

func TestOpenTickers(t *testing.T) {
	reg, err := New(context.Background(), &mockTradeStore{}, &mockLogger{})
	require.NoError(t, err)

	require.NoError(t, reg.Add(context.Background(), newTrade("a", "BTCUSDT")))
	require.NoError(t, reg.Add(context.Background(), newTrade("b", "ETHUSDT")))
	require.NoError(t, reg.Add(context.Background(), newTrade("c", "BTCUSDT")))
	require.NoError(t, reg.Add(context.Background(), newTrade("d", "SOLUSDT")))
	require.NoError(t, reg.Close(context.Background(), "d", 10))

	// Deduplicated, open trades only, first-seen order.
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, reg.OpenTickers())
}
