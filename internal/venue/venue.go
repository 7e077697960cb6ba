// Package venue is the boundary to the perpetual-futures exchange: index
// prices, tick/step metadata, historical candles, pending-order state and
// order submission.
package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/helios-quant/pairtrade/internal/types"
)

// TimestampLayout is the venue's ISO-8601-with-milliseconds wire format.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Resolution1Day is the only candle resolution the pipeline ingests.
const Resolution1Day = "1DAY"

// Client is the market data and trading boundary consumed by the core. All
// operations may fail with a transport error; callers do not retry
// transparently except for the executor's explicit pending-order barrier.
type Client interface {
	// GetPrice returns the current index price for a market.
	GetPrice(ctx context.Context, market string) (decimal.Decimal, error)
	// GetTickAndStep returns the venue tick and step sizes for a market.
	GetTickAndStep(ctx context.Context, market string) (tick, step decimal.Decimal, err error)
	// GetPendingOrders lists the account's outstanding unfilled orders.
	GetPendingOrders(ctx context.Context) ([]types.OrderReceipt, error)
	// SubmitOrder places an order and returns the venue receipt.
	SubmitOrder(ctx context.Context, params types.OrderParams) (types.OrderReceipt, error)
	// GetCandles returns historical candles for a market at a resolution.
	GetCandles(ctx context.Context, market string, resolution string) ([]RawCandle, error)
	// GetMarkets returns the venue's market metadata keyed by market symbol.
	GetMarkets(ctx context.Context) (map[string]Market, error)
}

// MarketStatus is the venue's market status enumeration. The core does not
// branch on it but must parse it without error.
type MarketStatus string

const (
	MarketStatusOnline    MarketStatus = "ONLINE"
	MarketStatusCloseOnly MarketStatus = "CLOSE_ONLY"
)

// UnmarshalJSON rejects statuses outside the known enumeration.
func (s *MarketStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch MarketStatus(raw) {
	case MarketStatusOnline, MarketStatusCloseOnly:
		*s = MarketStatus(raw)
		return nil
	}

	return fmt.Errorf("unknown market status %q", raw)
}

// MarketType is the venue's market type enumeration.
type MarketType string

const (
	MarketTypePerpetual MarketType = "PERPETUAL"
)

// UnmarshalJSON rejects types outside the known enumeration.
func (t *MarketType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if MarketType(raw) != MarketTypePerpetual {
		return fmt.Errorf("unknown market type %q", raw)
	}

	*t = MarketTypePerpetual

	return nil
}

// Market is one entry of the venue's markets metadata. The schema is strict:
// unknown extra fields are rejected at decode time.
type Market struct {
	Market                           string       `json:"market"`
	Status                           MarketStatus `json:"status"`
	BaseAsset                        string       `json:"baseAsset"`
	QuoteAsset                       string       `json:"quoteAsset"`
	StepSize                         string       `json:"stepSize"`
	TickSize                         string       `json:"tickSize"`
	IndexPrice                       string       `json:"indexPrice"`
	OraclePrice                      string       `json:"oraclePrice"`
	PriceChange24H                   string       `json:"priceChange24H"`
	NextFundingRate                  string       `json:"nextFundingRate"`
	NextFundingAt                    time.Time    `json:"nextFundingAt"`
	MinOrderSize                     string       `json:"minOrderSize"`
	Type                             MarketType   `json:"type"`
	InitialMarginFraction            string       `json:"initialMarginFraction"`
	MaintenanceMarginFraction        string       `json:"maintenanceMarginFraction"`
	TransferMarginFraction           string       `json:"transferMarginFraction"`
	Volume24H                        string       `json:"volume24H"`
	Trades24H                        int          `json:"trades24H,string"`
	OpenInterest                     string       `json:"openInterest"`
	IncrementalInitialMarginFraction string       `json:"incrementalInitialMarginFraction"`
	IncrementalPositionSize          int          `json:"incrementalPositionSize,string"`
	MaxPositionSize                  int          `json:"maxPositionSize,string"`
	BaselinePositionSize             int          `json:"baselinePositionSize,string"`
	AssetResolution                  string       `json:"assetResolution"`
	SyntheticAssetID                 string       `json:"syntheticAssetId"`
}

// RawCandle is one historical candle as returned by the venue: string-encoded
// timestamps and decimal OHLC fields. Volume and open-interest fields ride
// along but only OHLC and timestamps feed the core.
type RawCandle struct {
	StartedAt            string `json:"startedAt"`
	UpdatedAt            string `json:"updatedAt"`
	Market               string `json:"market"`
	Resolution           string `json:"resolution"`
	Low                  string `json:"low"`
	High                 string `json:"high"`
	Open                 string `json:"open"`
	Close                string `json:"close"`
	BaseTokenVolume      string `json:"baseTokenVolume"`
	Trades               string `json:"trades"`
	USDVolume            string `json:"usdVolume"`
	StartingOpenInterest string `json:"startingOpenInterest"`
}

// Times parses the candle's start/end timestamps from the wire format.
func (c RawCandle) Times() (start, end time.Time, err error) {
	start, err = time.Parse(TimestampLayout, c.StartedAt)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad startedAt %q: %w", c.StartedAt, err)
	}

	end, err = time.Parse(TimestampLayout, c.UpdatedAt)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad updatedAt %q: %w", c.UpdatedAt, err)
	}

	return start, end, nil
}
