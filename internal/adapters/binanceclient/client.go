package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"tradetracker/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/sync/errgroup"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	defaultRequestTimeout = 5 * time.Second
	defaultCacheTTL       = 30 * time.Second
)

// Client implements the ports.PriceFeed interface using the go-binance
// futures client. Each requested symbol is fetched with its own request and
// its own timeout; a failed symbol is dropped from the batch rather than
// failing it. Resolved prices are cached per symbol for the cache TTL.
type Client struct {
	futuresClient  *futures.Client
	logger         ports.Logger
	requestTimeout time.Duration
	cacheTTL       time.Duration
	now            func() time.Time

	mu    sync.Mutex
	cache map[string]cachedPrice
}

type cachedPrice struct {
	price     float64
	fetchedAt time.Time
}

// Config holds configuration specific to the Binance price feed adapter.
type Config struct {
	UseTestnet     bool
	Logger         ports.Logger
	RequestTimeout time.Duration // per-symbol request timeout (default 5s)
	CacheTTL       time.Duration // per-symbol price cache lifetime (default 30s)
	BaseURL        string        // overrides the production/testnet URL, for tests
}

// New creates a new Binance price feed adapter. Only public endpoints are
// used, so no API keys are required.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}

	client := futures.NewClient("", "")
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance price feed configured", map[string]interface{}{"baseURL": client.BaseURL})

	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}

	return &Client{
		futuresClient:  client,
		logger:         cfg.Logger,
		requestTimeout: requestTimeout,
		cacheTTL:       cacheTTL,
		now:            time.Now,
		cache:          make(map[string]cachedPrice),
	}, nil
}

// FetchPrices returns the latest known price per requested symbol. Symbols
// are fetched concurrently, one request each. Partial results are valid; an
// error is returned only when no symbol resolved at all, so the caller can
// substitute fallback values.
func (c *Client) FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	results := make(map[string]float64, len(symbols))
	if len(symbols) == 0 {
		return results, nil
	}

	// Serve fresh cache entries and collect what still needs a fetch.
	var missing []string
	seen := make(map[string]struct{}, len(symbols))
	c.mu.Lock()
	for _, raw := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		if symbol == "" {
			continue
		}
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}
		if entry, ok := c.cache[symbol]; ok && c.now().Sub(entry.fetchedAt) < c.cacheTTL {
			results[symbol] = entry.price
			continue
		}
		missing = append(missing, symbol)
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return results, nil
	}

	fetched := make(map[string]float64, len(missing))
	var fetchedMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, symbol := range missing {
		symbol := symbol
		g.Go(func() error {
			reqCtx, cancel := context.WithTimeout(gctx, c.requestTimeout)
			defer cancel()

			price, err := c.fetchOne(reqCtx, symbol)
			if err != nil {
				// Drop the symbol from the batch; partial results are fine.
				c.logger.Warn(gctx, "Price fetch failed for symbol", map[string]interface{}{"symbol": symbol, "error": err.Error()})
				return nil
			}
			fetchedMu.Lock()
			fetched[symbol] = price
			fetchedMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	fetchedAt := c.now()
	c.mu.Lock()
	for symbol, price := range fetched {
		c.cache[symbol] = cachedPrice{price: price, fetchedAt: fetchedAt}
		results[symbol] = price
	}
	c.mu.Unlock()

	if len(results) == 0 {
		return nil, fmt.Errorf("all %d symbol requests failed: %w", len(missing), ports.ErrFeedUnavailable)
	}
	return results, nil
}

// fetchOne retrieves the current ticker price for a single symbol.
func (c *Client) fetchOne(ctx context.Context, symbol string) (float64, error) {
	prices, err := c.futuresClient.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.translateError(err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("%s: %w", symbol, ports.ErrPriceNotFound)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse price '%s': %w", prices[0].Price, err)
	}
	return price, nil
}

// translateError maps transport and Binance API errors onto the standard
// ports errors.
func (c *Client) translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ports.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ports.ErrContextCanceled, err)
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case -1003: // Too many requests
			return fmt.Errorf("%w: %v", ports.ErrRateLimited, err)
		case -1121: // Invalid symbol
			return fmt.Errorf("%w: %v", ports.ErrInvalidRequest, err)
		default:
			return fmt.Errorf("%w: %v", ports.ErrFeedUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ports.ErrConnectionFailed, err)
}
