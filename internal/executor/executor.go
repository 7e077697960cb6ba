// Package executor submits the quantized short/long order pair for an entry
// signal, serialized against the account's pending-order state.
package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/helios-quant/pairtrade/internal/logger"
	"github.com/helios-quant/pairtrade/internal/quantize"
	"github.com/helios-quant/pairtrade/internal/types"
	"github.com/helios-quant/pairtrade/internal/venue"
	"github.com/helios-quant/pairtrade/pkg/errors"
)

// Clock abstracts time for the barrier poll loop and settle delay so tests
// do not sleep for real.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// PositionWriter persists the opened position.
type PositionWriter interface {
	CreatePosition(ctx context.Context, position types.Position) error
}

// Config carries the execution policy. Zero values fall back to the defaults
// the venue protocol was tuned against.
type Config struct {
	// NotionalUSD is the total position size across both legs.
	NotionalUSD decimal.Decimal
	// LimitFee is the fixed limit fee sent with every order.
	LimitFee string
	// OrderExpiry is how far in the future each order expires.
	OrderExpiry time.Duration
	// PollInterval is the pending-order barrier re-poll interval.
	PollInterval time.Duration
	// PendingTimeout bounds the barrier wait.
	PendingTimeout time.Duration
	// SettleDelay is the post-submission wait for venue-side account state
	// (e.g. position id) to propagate. A blind minimum-wait floor: the venue
	// offers no status signal to poll instead.
	SettleDelay time.Duration
}

// DefaultConfig returns the production execution policy.
func DefaultConfig() Config {
	return Config{
		NotionalUSD:    decimal.NewFromInt(200),
		LimitFee:       "0.0015",
		OrderExpiry:    75 * time.Second,
		PollInterval:   10 * time.Second,
		PendingTimeout: 120 * time.Second,
		SettleDelay:    15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()

	if c.NotionalUSD.IsZero() {
		c.NotionalUSD = defaults.NotionalUSD
	}

	if c.LimitFee == "" {
		c.LimitFee = defaults.LimitFee
	}

	if c.OrderExpiry == 0 {
		c.OrderExpiry = defaults.OrderExpiry
	}

	if c.PollInterval == 0 {
		c.PollInterval = defaults.PollInterval
	}

	if c.PendingTimeout == 0 {
		c.PendingTimeout = defaults.PendingTimeout
	}

	if c.SettleDelay == 0 {
		c.SettleDelay = defaults.SettleDelay
	}

	return c
}

// Executor opens pair positions on the venue.
type Executor struct {
	client    venue.Client
	positions PositionWriter
	clock     Clock
	config    Config
	logger    *logger.Logger
}

// NewExecutor creates an Executor with the real clock.
func NewExecutor(client venue.Client, positions PositionWriter, config Config, log *logger.Logger) *Executor {
	return newExecutor(client, positions, realClock{}, config, log)
}

func newExecutor(client venue.Client, positions PositionWriter, clock Clock, config Config, log *logger.Logger) *Executor {
	return &Executor{
		client:    client,
		positions: positions,
		clock:     clock,
		config:    config.withDefaults(),
		logger:    log,
	}
}

// OpenPairPosition shorts the instrument and longs the base, half the
// notional each, each leg gated by the pending-order barrier. The two legs
// are sequential, not atomic: a failure between them leaves one leg open
// with no automatic unwind, to be reconciled by an operator.
func (e *Executor) OpenPairPosition(ctx context.Context, instrument, base types.Instrument) (types.Position, error) {
	halfNotional := e.config.NotionalUSD.Div(decimal.NewFromInt(2))

	if err := e.blockUntilNoPendingOrders(ctx); err != nil {
		return types.Position{}, err
	}

	short, instrPrice, err := e.submitLeg(ctx, instrument.MarketID, types.SideSell, halfNotional)
	if err != nil {
		return types.Position{}, err
	}

	if err := e.blockUntilNoPendingOrders(ctx); err != nil {
		return types.Position{}, err
	}

	long, basePrice, err := e.submitLeg(ctx, base.MarketID, types.SideBuy, halfNotional)
	if err != nil {
		return types.Position{}, err
	}

	// Let the venue's account state catch up before recording the position.
	e.logger.Debug("sleeping for settle delay", zap.Duration("delay", e.config.SettleDelay))
	e.clock.Sleep(e.config.SettleDelay)

	execution, err := json.Marshal(map[string]types.LegExecution{
		"short": short,
		"long":  long,
	})
	if err != nil {
		return types.Position{}, errors.Wrap(errors.ErrCodeOrderFailed, "failed to encode execution record", err)
	}

	position := types.Position{
		Instrument:      instrument.Symbol,
		BaseInstrument:  base.Symbol,
		PositionSize:    e.config.NotionalUSD,
		InputInstrPrice: instrPrice,
		InputBasePrice:  basePrice,
		OpenedAt:        e.clock.Now().UTC(),
		Execution:       execution,
	}

	if err := e.positions.CreatePosition(ctx, position); err != nil {
		return types.Position{}, err
	}

	e.logger.Info("opened pair position",
		zap.String("instrument", instrument.Symbol),
		zap.String("base", base.Symbol),
		zap.String("notional", e.config.NotionalUSD.String()),
	)

	return position, nil
}

// blockUntilNoPendingOrders polls the account's pending orders until the list
// is empty, sleeping a fixed interval between polls, bounded by the
// configured timeout. No order is submitted while a prior order is still in
// flight.
func (e *Executor) blockUntilNoPendingOrders(ctx context.Context) error {
	for waited := time.Duration(0); waited < e.config.PendingTimeout; waited += e.config.PollInterval {
		orders, err := e.client.GetPendingOrders(ctx)
		if err != nil {
			return err
		}

		if len(orders) == 0 {
			return nil
		}

		e.logger.Debug("orders still pending, sleeping",
			zap.Int("pending", len(orders)),
			zap.Duration("interval", e.config.PollInterval),
		)
		e.clock.Sleep(e.config.PollInterval)
	}

	return errors.New(errors.ErrCodePendingOrderTimeout, "timed out waiting for orders to stop pending")
}

// submitLeg fetches and quantizes the current price, sizes the leg to half
// the notional, and submits a limit order with the fixed fee and expiry.
func (e *Executor) submitLeg(ctx context.Context, market string, side types.Side, halfNotional decimal.Decimal) (types.LegExecution, decimal.Decimal, error) {
	price, err := e.client.GetPrice(ctx, market)
	if err != nil {
		return types.LegExecution{}, decimal.Decimal{}, err
	}

	tick, step, err := e.client.GetTickAndStep(ctx, market)
	if err != nil {
		return types.LegExecution{}, decimal.Decimal{}, err
	}

	quantizedPrice, err := quantize.Price(price, tick)
	if err != nil {
		return types.LegExecution{}, decimal.Decimal{}, err
	}

	// An index price under half a tick quantizes to zero and cannot size a leg.
	if quantizedPrice.IsZero() {
		return types.LegExecution{}, decimal.Decimal{}, errors.Newf(errors.ErrCodeOrderFailed,
			"index price %s quantizes to zero at tick %s for %s", price, tick, market)
	}

	size, err := quantize.Size(halfNotional.Div(quantizedPrice), step)
	if err != nil {
		return types.LegExecution{}, decimal.Decimal{}, err
	}

	params := types.OrderParams{
		Market:                 market,
		Side:                   side,
		Kind:                   types.OrderKindLimit,
		PostOnly:               false,
		Size:                   size,
		Price:                  quantizedPrice,
		LimitFee:               e.config.LimitFee,
		ExpirationEpochSeconds: e.clock.Now().Add(e.config.OrderExpiry).Unix(),
		ClientID:               uuid.New().String(),
	}

	e.logger.Debug("submitting leg",
		zap.String("market", market),
		zap.String("side", string(side)),
		zap.String("size", size.String()),
		zap.String("price", quantizedPrice.String()),
	)

	receipt, err := e.client.SubmitOrder(ctx, params)
	if err != nil {
		return types.LegExecution{}, decimal.Decimal{}, errors.Wrapf(errors.ErrCodeOrderFailed, err, "failed to submit %s order for %s", side, market)
	}

	return types.LegExecution{OrderParams: params, OrderData: receipt}, quantizedPrice, nil
}
