package types

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Position is a recorded simultaneous short/long trade pair opened by the
// system. It is an append-only ledger entry: created exactly once per
// successful execution and never mutated afterward. The existence of a
// position for an (instrument, base) pair is the dedup guard preventing a
// second entry on the same pair.
type Position struct {
	Instrument     string `json:"instrument"`
	BaseInstrument string `json:"base_instrument"`
	// PositionSize is the total notional in USD across both legs.
	PositionSize    decimal.Decimal `json:"position_size"`
	InputInstrPrice decimal.Decimal `json:"input_instr_price"`
	InputBasePrice  decimal.Decimal `json:"input_base_price"`
	OpenedAt        time.Time       `json:"opened_at"`
	// Execution captures the raw order receipts for both legs, keyed
	// "short"/"long". Opaque to downstream consumers.
	Execution json.RawMessage `json:"execution"`
}
