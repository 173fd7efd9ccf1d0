package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradetracker/internal/app"
	"tradetracker/internal/domain"
	"tradetracker/internal/ports"
	"tradetracker/internal/view"

	"github.com/gin-gonic/gin"
)

// tradeResponse is the wire shape of a projected trade. The field names
// match the tracker's stored record layout; the derived valuation fields
// are omitted when the trade has no resolved reference price yet.
type tradeResponse struct {
	ID            string   `json:"id"`
	Ticker        string   `json:"ticker"`
	EntryPrice    float64  `json:"entryPrice"`
	ExitPrice     *float64 `json:"exitPrice,omitempty"`
	Leverage      float64  `json:"leverage"`
	MarginSize    float64  `json:"marginSize"`
	IsLong        bool     `json:"isLong"`
	IsClosed      bool     `json:"isClosed"`
	Timestamp     int64    `json:"timestamp"`
	CurrentPrice  *float64 `json:"currentPrice,omitempty"`
	PnL           *float64 `json:"pnl,omitempty"`
	PnLPercentage *float64 `json:"pnlPercentage,omitempty"`
}

func toTradeResponse(t *domain.ValuedTrade) tradeResponse {
	resp := tradeResponse{
		ID:            t.ID,
		Ticker:        t.Ticker,
		EntryPrice:    t.EntryPrice,
		Leverage:      t.Leverage,
		MarginSize:    t.MarginSize,
		IsLong:        t.IsLong(),
		IsClosed:      !t.IsOpen(),
		Timestamp:     t.Timestamp,
		CurrentPrice:  t.CurrentPrice,
		PnL:           t.PnL,
		PnLPercentage: t.PnLPercentage,
	}
	if !t.IsOpen() {
		exit := t.ExitPrice
		resp.ExitPrice = &exit
	}
	return resp
}

// viewConfig extracts the sort/filter query parameters shared by the list
// and export endpoints. Unknown sort keys fall back to the default view
// ordering (newest first).
func viewConfig(c *gin.Context) (view.SortConfig, view.FilterConfig) {
	sortCfg := view.DefaultSort()
	if key, ok := view.ParseSortKey(c.Query("sort")); ok {
		sortCfg = view.SortConfig{Key: key, Direction: view.Ascending}
		if c.Query("direction") == string(view.Descending) {
			sortCfg.Direction = view.Descending
		}
	}
	return sortCfg, view.FilterConfig{Ticker: c.Query("ticker")}
}

func (s *Server) handleListTrades(c *gin.Context) {
	sortCfg, filterCfg := viewConfig(c)
	rows := s.svc.View(sortCfg, filterCfg)

	out := make([]tradeResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toTradeResponse(row))
	}
	c.JSON(http.StatusOK, out)
}

type addTradeRequest struct {
	Ticker     string  `json:"ticker"`
	EntryPrice float64 `json:"entryPrice"`
	Leverage   float64 `json:"leverage"`
	MarginSize float64 `json:"marginSize"`
	IsLong     *bool   `json:"isLong"`
}

func (s *Server) handleAddTrade(c *gin.Context) {
	var req addTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "message": err.Error()})
		return
	}

	// Direction defaults to long when unspecified.
	isLong := true
	if req.IsLong != nil {
		isLong = *req.IsLong
	}

	trade, err := s.svc.AddTrade(c.Request.Context(), app.AddTradeParams{
		Ticker:     req.Ticker,
		EntryPrice: req.EntryPrice,
		Leverage:   req.Leverage,
		MarginSize: req.MarginSize,
		IsLong:     isLong,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTradeResponse(&domain.ValuedTrade{Trade: *trade}))
}

type closeTradeRequest struct {
	ExitPrice float64 `json:"exitPrice"`
}

func (s *Server) handleCloseTrade(c *gin.Context) {
	var req closeTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "message": err.Error()})
		return
	}
	if err := s.svc.CloseTrade(c.Request.Context(), c.Param("id"), req.ExitPrice); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteTrade(c *gin.Context) {
	if err := s.svc.RemoveTrade(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// balanceResponse is the effective-balance view: the base amount combined
// with the aggregate PnL. Only the base shape is ever persisted.
type balanceResponse struct {
	Amount      float64 `json:"amount"`
	LastUpdated int64   `json:"lastUpdated"`
	BaseBalance float64 `json:"baseBalance"`
	PnL         float64 `json:"pnl"`
}

func (s *Server) handleGetBalance(c *gin.Context) {
	eff := s.svc.EffectiveBalance()
	c.JSON(http.StatusOK, balanceResponse{
		Amount:      eff.Amount,
		LastUpdated: eff.LastUpdated,
		BaseBalance: eff.BaseBalance,
		PnL:         eff.PnL,
	})
}

type setBalanceRequest struct {
	Amount float64 `json:"amount"`
}

func (s *Server) handleSetBalance(c *gin.Context) {
	var req setBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "message": err.Error()})
		return
	}
	if err := s.svc.SetBalance(c.Request.Context(), req.Amount); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handlePrices proxies the upstream price feed. Responses carry permissive
// CORS headers (set by middleware) and cache-control semantics matching the
// feed's 30 second freshness window. When the symbols parameter is omitted
// the current open-trade tickers are used.
func (s *Server) handlePrices(c *gin.Context) {
	var symbols []string
	if raw := c.Query("symbols"); raw != "" {
		for _, sym := range strings.Split(raw, ",") {
			if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
				symbols = append(symbols, sym)
			}
		}
	} else {
		symbols = s.svc.OpenTickers()
	}

	prices, err := s.svc.FetchPrices(c.Request.Context(), symbols)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch prices", "message": err.Error()})
		return
	}

	out := make([]domain.MarketPrice, 0, len(prices))
	for _, sym := range symbols {
		price, ok := prices[sym]
		if !ok {
			continue
		}
		out = append(out, domain.MarketPrice{
			Symbol: sym,
			Price:  strconv.FormatFloat(price, 'f', -1, 64),
		})
	}

	c.Header("Cache-Control", "public, s-maxage=30, stale-while-revalidate=60")
	c.JSON(http.StatusOK, out)
}

// handleExportCSV streams the projected view as a CSV download. The export
// reflects exactly what the view shows for the given sort/filter, not the
// raw registry order.
func (s *Server) handleExportCSV(c *gin.Context) {
	sortCfg, filterCfg := viewConfig(c)

	filename := "trades-" + time.Now().Format("2006-01-02") + ".csv"
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := s.svc.ExportCSV(c.Writer, sortCfg, filterCfg); err != nil {
		s.logger.Error(c.Request.Context(), err, "CSV export failed")
		c.Status(http.StatusInternalServerError)
	}
}

// writeError maps the standard ports errors onto HTTP status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ports.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, ports.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ports.ErrDuplicateEntry):
		status = http.StatusConflict
	case errors.Is(err, ports.ErrFeedUnavailable):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
