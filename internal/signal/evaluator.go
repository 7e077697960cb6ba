// Package signal computes the entry decision for an instrument/base pair at a
// given date using correlation windows over stored daily closes.
package signal

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/helios-quant/pairtrade/internal/logger"
	"github.com/helios-quant/pairtrade/internal/types"
	"github.com/helios-quant/pairtrade/pkg/errors"
)

// Entry thresholds. The instrument must trend with the base over the medium
// term but diverge from it over the short window, while the base leg itself
// is rising. The literal thresholds encode the strategy as shipped; do not
// tune them without product review.
const (
	corr30dThreshold = 0.5
	corr4dThreshold  = -0.25

	longWindowDays  = 30
	shortWindowDays = 4
)

// Rejection reasons. Downstream audit records key on these strings.
const (
	ReasonAlreadyHavePosition = "Already have a position"
	ReasonCorr30dTooLow       = "30 day correlation is too low"
	ReasonCorr4dTooHigh       = "4 day correlation is too high"
	ReasonBaseDown            = "Base is down over the last 4 days"
)

// CandleReader is the slice of the repository the evaluator needs.
type CandleReader interface {
	// CloseNearest returns the close of the candle whose period end is
	// nearest to at, ties toward the earlier candle.
	CloseNearest(ctx context.Context, instrument string, at time.Time) (decimal.Decimal, error)
	// ClosesInRange returns closes with period end in [start, end), ascending.
	ClosesInRange(ctx context.Context, instrument string, start, end time.Time) ([]decimal.Decimal, error)
}

// PositionChecker reports whether a position is already open for a pair.
type PositionChecker interface {
	HasPosition(ctx context.Context, instrument, base string) (bool, error)
}

// Evaluator runs the gate pipeline for one instrument against the base.
type Evaluator struct {
	candles   CandleReader
	positions PositionChecker
	logger    *logger.Logger
}

// NewEvaluator creates an Evaluator over the given repositories.
func NewEvaluator(candles CandleReader, positions PositionChecker, log *logger.Logger) *Evaluator {
	return &Evaluator{
		candles:   candles,
		positions: positions,
		logger:    log,
	}
}

// Evaluate runs the sequential gates and returns a decision record. It never
// fails: any internal error is logged and converted into a negative decision
// with Error set.
func (e *Evaluator) Evaluate(ctx context.Context, instrument, base types.Instrument, date time.Time) types.Decision {
	decision := types.Decision{
		Instrument:   instrument.Symbol,
		Base:         base.Symbol,
		Date:         date,
		OpenPosition: false,
		Error:        false,
	}

	fail := func(err error) types.Decision {
		e.logger.Error("error evaluating trade",
			zap.String("instrument", instrument.Symbol),
			zap.String("base", base.Symbol),
			zap.Error(err),
		)

		decision.Error = true
		decision.OpenPosition = false

		return decision
	}

	// 1. An open position for the pair blocks a second entry.
	hasPosition, err := e.positions.HasPosition(ctx, instrument.Symbol, base.Symbol)
	if err != nil {
		return fail(err)
	}

	if hasPosition {
		decision.Reason = optional.Some(ReasonAlreadyHavePosition)
		return decision
	}

	// 2. The instrument must trend with the base over the last 30 days.
	corr30d, err := e.correlation(ctx, instrument.Symbol, base.Symbol, date.AddDate(0, 0, -longWindowDays), date)
	if err != nil {
		return fail(err)
	}

	decision.Corr30d = optional.Some(corr30d)

	if corr30d < corr30dThreshold {
		decision.Reason = optional.Some(ReasonCorr30dTooLow)
		return decision
	}

	// 3. The pair must diverge over the last 4 days; a negative short-window
	// correlation is the actual entry trigger.
	corr4d, err := e.correlation(ctx, instrument.Symbol, base.Symbol, date.AddDate(0, 0, -shortWindowDays), date)
	if err != nil {
		return fail(err)
	}

	decision.Corr4d = optional.Some(corr4d)

	if corr4d > corr4dThreshold {
		decision.Reason = optional.Some(ReasonCorr4dTooHigh)
		return decision
	}

	// 4. The base leg must be rising over the last 4 days.
	base4d, err := e.candles.CloseNearest(ctx, base.Symbol, date.AddDate(0, 0, -shortWindowDays))
	if err != nil {
		return fail(err)
	}

	baseNow, err := e.candles.CloseNearest(ctx, base.Symbol, date)
	if err != nil {
		return fail(err)
	}

	if base4d.IsZero() {
		return fail(errors.Newf(errors.ErrCodeEvaluationFailed, "base %s close at %s is zero", base.Symbol, date.AddDate(0, 0, -shortWindowDays).Format("2006-01-02")))
	}

	baseDiff4d := baseNow.Sub(base4d).Div(base4d).InexactFloat64()
	decision.BaseDiff4d = optional.Some(baseDiff4d)

	if baseDiff4d <= 0 {
		decision.Reason = optional.Some(ReasonBaseDown)
		return decision
	}

	decision.OpenPosition = true

	return decision
}

// correlation computes the Pearson correlation of daily closes for both
// instruments over [start, end). Missing candles on one side produce
// misaligned series, which surfaces as an evaluation error.
func (e *Evaluator) correlation(ctx context.Context, instrument, base string, start, end time.Time) (float64, error) {
	instrCloses, err := e.closes(ctx, instrument, start, end)
	if err != nil {
		return 0, err
	}

	baseCloses, err := e.closes(ctx, base, start, end)
	if err != nil {
		return 0, err
	}

	return pearson(instrCloses, baseCloses)
}

func (e *Evaluator) closes(ctx context.Context, instrument string, start, end time.Time) ([]float64, error) {
	closes, err := e.candles.ClosesInRange(ctx, instrument, start, end)
	if err != nil {
		return nil, err
	}

	series := make([]float64, len(closes))
	for i, c := range closes {
		series[i] = c.InexactFloat64()
	}

	return series, nil
}
