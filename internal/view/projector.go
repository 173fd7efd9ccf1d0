package view

import (
	"sort"
	"strings"

	"tradetracker/internal/domain"
	"tradetracker/internal/pnl"
)

// SortDirection orders a projected view ascending or descending.
type SortDirection string

const (
	Ascending  SortDirection = "ascending"
	Descending SortDirection = "descending"
)

// SortKey names the column a projected view is ordered by. The values match
// the trade record's field names plus the derived valuation columns.
type SortKey string

const (
	SortByTicker        SortKey = "ticker"
	SortByEntryPrice    SortKey = "entryPrice"
	SortByExitPrice     SortKey = "exitPrice"
	SortByCurrentPrice  SortKey = "currentPrice"
	SortByLeverage      SortKey = "leverage"
	SortByMarginSize    SortKey = "marginSize"
	SortByDirection     SortKey = "isLong"
	SortByStatus        SortKey = "isClosed"
	SortByPnL           SortKey = "pnl"
	SortByPnLPercentage SortKey = "pnlPercentage"
	SortByTimestamp     SortKey = "timestamp"
)

// ParseSortKey validates a user-supplied sort key.
func ParseSortKey(s string) (SortKey, bool) {
	switch key := SortKey(s); key {
	case SortByTicker, SortByEntryPrice, SortByExitPrice, SortByCurrentPrice,
		SortByLeverage, SortByMarginSize, SortByDirection, SortByStatus,
		SortByPnL, SortByPnLPercentage, SortByTimestamp:
		return key, true
	}
	return "", false
}

// SortConfig describes the active ordering of the projected view.
type SortConfig struct {
	Key       SortKey
	Direction SortDirection
}

// FilterConfig restricts the projected view to trades whose ticker contains
// the given substring, case-insensitively. An empty ticker keeps all trades.
type FilterConfig struct {
	Ticker string
}

// DefaultSort is the view's initial ordering: newest trades first.
func DefaultSort() SortConfig {
	return SortConfig{Key: SortByTimestamp, Direction: Descending}
}

// Toggle returns the configuration after the user selects key: selecting
// the active key flips the direction, selecting a new key resets to
// ascending.
func (c SortConfig) Toggle(key SortKey) SortConfig {
	if c.Key == key && c.Direction == Ascending {
		return SortConfig{Key: key, Direction: Descending}
	}
	return SortConfig{Key: key, Direction: Ascending}
}

// Project produces the ordered, filtered, PnL-annotated row sequence for
// display or export. Trades with no resolvable reference price keep their
// valuation fields unset rather than zero.
func Project(trades []*domain.Trade, prices map[string]float64, sortCfg SortConfig, filterCfg FilterConfig) []*domain.ValuedTrade {
	rows := annotate(trades, prices)
	rows = filterRows(rows, filterCfg)
	sortRows(rows, sortCfg)
	return rows
}

func annotate(trades []*domain.Trade, prices map[string]float64) []*domain.ValuedTrade {
	rows := make([]*domain.ValuedTrade, 0, len(trades))
	for _, t := range trades {
		row := &domain.ValuedTrade{Trade: *t}

		live, hasLive := prices[t.Ticker]
		if hasLive && t.IsOpen() {
			price := live
			row.CurrentPrice = &price
		}
		if res, ok := pnl.ValueTrade(t, live, hasLive); ok {
			p, pct := res.PnL, res.PnLPercentage
			row.PnL = &p
			row.PnLPercentage = &pct
		}
		rows = append(rows, row)
	}
	return rows
}

func filterRows(rows []*domain.ValuedTrade, cfg FilterConfig) []*domain.ValuedTrade {
	needle := strings.ToLower(strings.TrimSpace(cfg.Ticker))
	if needle == "" {
		return rows
	}
	filtered := rows[:0]
	for _, row := range rows {
		if strings.Contains(strings.ToLower(row.Ticker), needle) {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

// sortRows orders rows in place. The sort must be stable so that rows with
// equal (or mutually undefined) keys keep their original relative order.
func sortRows(rows []*domain.ValuedTrade, cfg SortConfig) {
	sort.SliceStable(rows, func(i, j int) bool {
		c := compare(rows[i], rows[j], cfg.Key)
		if cfg.Direction == Descending {
			return c > 0
		}
		return c < 0
	})
}

// compare orders two rows by key, returning -1, 0 or 1. An undefined value
// on either side compares equal, so missing data never reorders rows.
func compare(a, b *domain.ValuedTrade, key SortKey) int {
	switch key {
	case SortByTicker:
		return strings.Compare(a.Ticker, b.Ticker)
	case SortByEntryPrice:
		return compareFloat(a.EntryPrice, b.EntryPrice)
	case SortByExitPrice:
		return compareOptional(exitPrice(a), exitPrice(b))
	case SortByCurrentPrice:
		return compareOptional(a.CurrentPrice, b.CurrentPrice)
	case SortByLeverage:
		return compareFloat(a.Leverage, b.Leverage)
	case SortByMarginSize:
		return compareFloat(a.MarginSize, b.MarginSize)
	case SortByDirection:
		return compareBool(a.IsLong(), b.IsLong())
	case SortByStatus:
		return compareBool(!a.IsOpen(), !b.IsOpen())
	case SortByPnL:
		return compareOptional(a.PnL, b.PnL)
	case SortByPnLPercentage:
		return compareOptional(a.PnLPercentage, b.PnLPercentage)
	case SortByTimestamp:
		return compareInt64(a.Timestamp, b.Timestamp)
	}
	return 0
}

func exitPrice(t *domain.ValuedTrade) *float64 {
	if t.IsOpen() {
		return nil
	}
	return &t.ExitPrice
}

func compareOptional(a, b *float64) int {
	if a == nil || b == nil {
		return 0
	}
	return compareFloat(*a, *b)
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareBool orders false before true.
func compareBool(a, b bool) int {
	switch {
	case !a && b:
		return -1
	case a && !b:
		return 1
	}
	return 0
}
