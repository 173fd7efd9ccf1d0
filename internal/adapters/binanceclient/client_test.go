package binanceclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradetracker/internal/ports"
)

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// newPriceServer serves ticker price requests from the given table and
// counts requests per symbol. Unknown symbols get a 500.
func newPriceServer(t *testing.T, prices map[string]string, requests *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/ticker/price") {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt64(requests, 1)
		symbol := r.URL.Query().Get("symbol")
		price, ok := prices[symbol]
		if !ok {
			http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"symbol":%q,"price":%q}`, symbol, price)
	}))
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := New(Config{Logger: noopLogger{}, BaseURL: baseURL})
	require.NoError(t, err)
	return client
}

func TestNewRequiresLogger(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestFetchPricesResolvesAllSymbols(t *testing.T) {
	var requests int64
	server := newPriceServer(t, map[string]string{
		"BTCUSDT": "30000.50",
		"ETHUSDT": "2000.25",
	}, &requests)
	defer server.Close()

	client := newTestClient(t, server.URL)

	got, err := client.FetchPrices(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"BTCUSDT": 30000.50, "ETHUSDT": 2000.25}, got)
	assert.Equal(t, int64(2), atomic.LoadInt64(&requests))
}

func TestFetchPricesNormalizesAndDeduplicates(t *testing.T) {
	var requests int64
	server := newPriceServer(t, map[string]string{"BTCUSDT": "30000"}, &requests)
	defer server.Close()

	client := newTestClient(t, server.URL)

	got, err := client.FetchPrices(context.Background(), []string{" btcusdt ", "BTCUSDT", ""})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"BTCUSDT": 30000}, got)
	assert.Equal(t, int64(1), atomic.LoadInt64(&requests))
}

func TestFetchPricesPartialFailure(t *testing.T) {
	var requests int64
	server := newPriceServer(t, map[string]string{"BTCUSDT": "30000"}, &requests)
	defer server.Close()

	client := newTestClient(t, server.URL)

	got, err := client.FetchPrices(context.Background(), []string{"BTCUSDT", "NOPEUSDT"})
	require.NoError(t, err)
	// The failed symbol is dropped, not zeroed.
	assert.Equal(t, map[string]float64{"BTCUSDT": 30000}, got)
	assert.NotContains(t, got, "NOPEUSDT")
}

func TestFetchPricesAllFailed(t *testing.T) {
	var requests int64
	server := newPriceServer(t, nil, &requests)
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.FetchPrices(context.Background(), []string{"NOPEUSDT", "ALSONOPE"})
	assert.ErrorIs(t, err, ports.ErrFeedUnavailable)
}

func TestFetchPricesEmptySymbolList(t *testing.T) {
	var requests int64
	server := newPriceServer(t, nil, &requests)
	defer server.Close()

	client := newTestClient(t, server.URL)

	got, err := client.FetchPrices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, atomic.LoadInt64(&requests))
}

func TestFetchPricesServesFromCache(t *testing.T) {
	var requests int64
	server := newPriceServer(t, map[string]string{"BTCUSDT": "30000"}, &requests)
	defer server.Close()

	client := newTestClient(t, server.URL)
	current := time.Now()
	client.now = func() time.Time { return current }

	_, err := client.FetchPrices(context.Background(), []string{"BTCUSDT"})
	require.NoError(t, err)

	got, err := client.FetchPrices(context.Background(), []string{"BTCUSDT"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"BTCUSDT": 30000}, got)
	assert.Equal(t, int64(1), atomic.LoadInt64(&requests))

	// Once the entry ages past the TTL, the next call fetches again.
	current = current.Add(defaultCacheTTL + time.Second)
	_, err = client.FetchPrices(context.Background(), []string{"BTCUSDT"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&requests))
}

func TestTranslateError(t *testing.T) {
	client := newTestClient(t, "http://localhost:0")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"deadline exceeded maps to timeout", context.DeadlineExceeded, ports.ErrTimeout},
		{"cancellation is preserved", context.Canceled, ports.ErrContextCanceled},
		{"unknown transport errors map to connection failure", fmt.Errorf("connection refused"), ports.ErrConnectionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, client.translateError(tt.in), tt.want)
		})
	}
}
