package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is an OHLC price summary over a fixed time resolution. Prices are
// exact decimals so stored history never accumulates floating-point drift.
// Candles are unique per (instrument, period start) and append-only.
type Candle struct {
	Instrument  string          `json:"instrument"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	Resolution  string          `json:"resolution"`
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Close       decimal.Decimal `json:"close"`
}
