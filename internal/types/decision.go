package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// Decision is the structured outcome of evaluating one instrument against the
// base at a given date. Optional fields are only set once the corresponding
// gate has actually been evaluated, so a decision rejected at the 30-day gate
// carries no 4-day correlation.
type Decision struct {
	Instrument   string    `json:"instr"`
	Base         string    `json:"base"`
	Date         time.Time `json:"date"`
	OpenPosition bool      `json:"open_position"`
	// Error is set when evaluation failed internally; the evaluator converts
	// every failure into a negative decision instead of propagating.
	Error      bool                     `json:"error"`
	Reason     optional.Option[string]  `json:"reason,omitempty"`
	Corr30d    optional.Option[float64] `json:"corr_30d,omitempty"`
	Corr4d     optional.Option[float64] `json:"corr_4d,omitempty"`
	BaseDiff4d optional.Option[float64] `json:"base_diff_4d,omitempty"`
}
