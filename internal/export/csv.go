package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"time"

	"tradetracker/internal/domain"
)

// Headers of the export table, in display column order.
var Headers = []string{
	"Ticker",
	"Position",
	"Entry Price",
	"Exit Price",
	"Current Price",
	"Leverage",
	"Margin Size",
	"PnL",
	"PnL Percentage",
	"Date",
}

const (
	priceDecimals = 8
	cashDecimals  = 2
	dateLayout    = "1/2/2006, 3:04:05 PM"
)

// Write serializes the projected rows to w as a comma-delimited table in
// the order given, which must be the order the view currently shows.
// encoding/csv takes care of quoting fields that contain commas, quotes or
// newlines.
func Write(w io.Writer, rows []*domain.ValuedTrade) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Headers); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(Record(row)); err != nil {
			return fmt.Errorf("writing csv row for trade %s: %w", row.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Record formats one projected trade into the 10 export columns.
func Record(t *domain.ValuedTrade) []string {
	exit := ""
	if !t.IsOpen() {
		exit = FormatTrimmed(t.ExitPrice, priceDecimals)
	}

	// Closed trades show a marker instead of a live price; open trades
	// with no resolved price stay blank, never zero.
	current := ""
	switch {
	case !t.IsOpen():
		current = "Closed"
	case t.CurrentPrice != nil:
		current = FormatTrimmed(*t.CurrentPrice, priceDecimals)
	}

	// The PnL column carries the magnitude; the sign is conveyed by the
	// percentage column.
	pnlField := ""
	if t.PnL != nil {
		pnlField = FormatWithCommas(math.Abs(*t.PnL), cashDecimals)
	}
	pctField := ""
	if t.PnLPercentage != nil {
		sign := ""
		if *t.PnLPercentage >= 0 {
			sign = "+"
		}
		pctField = fmt.Sprintf("%s%.2f%%", sign, *t.PnLPercentage)
	}

	return []string{
		t.Ticker,
		t.Direction.Label(),
		FormatTrimmed(t.EntryPrice, priceDecimals),
		exit,
		current,
		FormatTrimmed(t.Leverage, cashDecimals) + "x",
		FormatWithCommas(t.MarginSize, cashDecimals),
		pnlField,
		pctField,
		time.UnixMilli(t.Timestamp).Format(dateLayout),
	}
}
