package types

// Instrument is a tradeable asset tracked by the system, distinct from the
// fixed base asset it is paired against.
type Instrument struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	// MarketID is the venue market identifier (e.g. "DOGE-USD"). Empty when the
	// instrument has no perpetual market; ingestion skips those.
	MarketID string `json:"market_id"`
	// TradingEnabled marks the instrument as eligible for the trade cycle.
	TradingEnabled bool `json:"trading_enabled"`
}

// Settings is the single mutable toggle gating whether evaluated "open"
// signals actually execute orders. The core reads it and never writes it.
type Settings struct {
	EnableTrades bool `json:"enable_trades"`
}
