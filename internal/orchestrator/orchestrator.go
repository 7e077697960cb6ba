package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/helios-quant/pairtrade/internal/logger"
	"github.com/helios-quant/pairtrade/internal/types"
	"github.com/helios-quant/pairtrade/pkg/errors"
)

// DefaultBaseSymbol is the long leg of every pair.
const DefaultBaseSymbol = "ETH"

// Evaluator produces a trade decision for one instrument against the base.
type Evaluator interface {
	Evaluate(ctx context.Context, instrument, base types.Instrument, date time.Time) types.Decision
}

// PositionOpener places both legs of a pair position.
type PositionOpener interface {
	OpenPairPosition(ctx context.Context, instrument, base types.Instrument) (types.Position, error)
}

// Store is the slice of the repository the orchestrator reads and writes.
type Store interface {
	GetSettings(ctx context.Context) (types.Settings, error)
	ListInstruments(ctx context.Context, tradingOnly bool) ([]types.Instrument, error)
	GetInstrument(ctx context.Context, symbol string) (types.Instrument, error)
	AppendSyncHistory(ctx context.Context, record types.SyncHistory) error
}

// Orchestrator runs one trade cycle: evaluate every trading-enabled
// instrument against the base, open positions where the signal says so, and
// record the full decision map as an audit row.
type Orchestrator struct {
	store      Store
	evaluator  Evaluator
	executor   PositionOpener
	baseSymbol string
	now        func() time.Time
	logger     *logger.Logger
}

func New(store Store, evaluator Evaluator, executor PositionOpener, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		evaluator:  evaluator,
		executor:   executor,
		baseSymbol: DefaultBaseSymbol,
		now:        time.Now,
		logger:     log,
	}
}

// WithBase overrides the base symbol for every pair.
func (o *Orchestrator) WithBase(symbol string) *Orchestrator {
	o.baseSymbol = symbol
	return o
}

// RunTrades evaluates every trading-enabled instrument at the current time.
// Positions are only opened when trading is enabled in settings; decisions are
// computed and recorded either way. A failed execution for one instrument does
// not stop the loop.
func (o *Orchestrator) RunTrades(ctx context.Context) error {
	settings, err := o.store.GetSettings(ctx)
	if err != nil {
		return err
	}

	base, err := o.store.GetInstrument(ctx, o.baseSymbol)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeEvaluationFailed, err, "base instrument %q not found", o.baseSymbol)
	}

	instruments, err := o.store.ListInstruments(ctx, true)
	if err != nil {
		return err
	}

	date := o.now().UTC()
	decisions := make(map[string]types.Decision, len(instruments))
	opened := 0

	for _, instrument := range instruments {
		if instrument.Symbol == base.Symbol {
			continue
		}

		decision := o.evaluator.Evaluate(ctx, instrument, base, date)

		if decision.OpenPosition {
			if !settings.EnableTrades {
				o.logger.Info("trading disabled, not opening position",
					zap.String("instrument", instrument.Symbol),
				)
			} else if _, err := o.executor.OpenPairPosition(ctx, instrument, base); err != nil {
				o.logger.Error("failed to open pair position",
					zap.String("instrument", instrument.Symbol),
					zap.Error(err),
				)
				decision.Error = true
			} else {
				opened++
			}
		}

		decisions[instrument.Symbol] = decision
	}

	extra, err := json.Marshal(decisions)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to encode decision map", err)
	}

	record := types.SyncHistory{
		Date:          date,
		SyncType:      types.SyncTypeTrades,
		RecordsSynced: opened,
		ExtraData:     extra,
	}

	if err := o.store.AppendSyncHistory(ctx, record); err != nil {
		return err
	}

	o.logger.Info("trade cycle complete",
		zap.Int("evaluated", len(decisions)),
		zap.Int("opened", opened),
		zap.Bool("trading_enabled", settings.EnableTrades),
	)

	return nil
}
