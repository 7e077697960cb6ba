// Package ingest pulls market metadata and historical candles into the
// repository: venue candle sync, market-driven instrument onboarding, and the
// secondary kline backfill.
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/helios-quant/pairtrade/internal/logger"
	"github.com/helios-quant/pairtrade/internal/types"
	"github.com/helios-quant/pairtrade/internal/venue"
	"github.com/helios-quant/pairtrade/pkg/errors"
)

// Store is the slice of the repository the ingest pipelines write to.
type Store interface {
	ListInstruments(ctx context.Context, tradingOnly bool) ([]types.Instrument, error)
	CandleExists(ctx context.Context, instrument string, periodStart time.Time) (bool, error)
	InsertCandle(ctx context.Context, candle types.Candle) error
	AppendSyncHistory(ctx context.Context, record types.SyncHistory) error
	CreateInstrumentIfAbsent(ctx context.Context, instrument types.Instrument) (bool, error)
}

// Syncer drives candle and instrument synchronization against the venue.
type Syncer struct {
	client venue.Client
	store  Store
	now    func() time.Time
	logger *logger.Logger
}

func NewSyncer(client venue.Client, store Store, log *logger.Logger) *Syncer {
	return &Syncer{
		client: client,
		store:  store,
		now:    time.Now,
		logger: log,
	}
}

// SyncCandles pulls daily candles for every tracked instrument and inserts
// the ones the repository does not have yet. Candles whose period started
// within the last 24 hours are still forming on the venue and are dropped.
// A failure for one instrument is logged and the rest still sync. Returns
// new-row counts keyed by instrument symbol and appends a sync audit row.
func (s *Syncer) SyncCandles(ctx context.Context) (map[string]int, error) {
	instruments, err := s.store.ListInstruments(ctx, false)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().UTC().Add(-24 * time.Hour)
	counts := make(map[string]int, len(instruments))
	total := 0

	for _, instrument := range instruments {
		if instrument.MarketID == "" {
			s.logger.Info("instrument has no market, skipping candle sync",
				zap.String("instrument", instrument.Symbol),
			)
			continue
		}

		inserted, err := s.syncInstrumentCandles(ctx, instrument, cutoff)
		if err != nil {
			s.logger.Error("candle sync failed for instrument",
				zap.String("instrument", instrument.Symbol),
				zap.Error(err),
			)
			continue
		}

		counts[instrument.Symbol] = inserted
		total += inserted
	}

	extra, err := json.Marshal(counts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to encode sync counts", err)
	}

	record := types.SyncHistory{
		Date:          s.now().UTC(),
		SyncType:      types.SyncTypeCandles,
		RecordsSynced: total,
		ExtraData:     extra,
	}

	if err := s.store.AppendSyncHistory(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("candle sync complete",
		zap.Int("instruments", len(counts)),
		zap.Int("inserted", total),
	)

	return counts, nil
}

func (s *Syncer) syncInstrumentCandles(ctx context.Context, instrument types.Instrument, cutoff time.Time) (int, error) {
	raws, err := s.client.GetCandles(ctx, instrument.MarketID, venue.Resolution1Day)
	if err != nil {
		return 0, err
	}

	inserted := 0

	for _, raw := range raws {
		start, end, err := raw.Times()
		if err != nil {
			return inserted, errors.Wrap(errors.ErrCodeVenueDecodeFailed, "bad candle timestamps", err)
		}

		if start.After(cutoff) {
			s.logger.Debug("candle is too fresh, skipping",
				zap.String("instrument", instrument.Symbol),
				zap.Time("period_start", start),
			)
			continue
		}

		exists, err := s.store.CandleExists(ctx, instrument.Symbol, start)
		if err != nil {
			return inserted, err
		}

		if exists {
			s.logger.Debug("candle already stored, skipping",
				zap.String("instrument", instrument.Symbol),
				zap.Time("period_start", start),
			)
			continue
		}

		candle, err := rawToCandle(instrument.Symbol, raw, start, end)
		if err != nil {
			return inserted, err
		}

		if err := s.store.InsertCandle(ctx, candle); err != nil {
			return inserted, err
		}

		inserted++
	}

	return inserted, nil
}

func rawToCandle(symbol string, raw venue.RawCandle, start, end time.Time) (types.Candle, error) {
	candle := types.Candle{
		Instrument:  symbol,
		PeriodStart: start,
		PeriodEnd:   end,
		Resolution:  raw.Resolution,
	}

	fields := []struct {
		value string
		dst   *decimal.Decimal
	}{
		{raw.Open, &candle.Open},
		{raw.High, &candle.High},
		{raw.Low, &candle.Low},
		{raw.Close, &candle.Close},
	}

	for _, field := range fields {
		parsed, err := decimal.NewFromString(field.value)
		if err != nil {
			return types.Candle{}, errors.Wrapf(errors.ErrCodeVenueDecodeFailed, err, "bad candle price %q", field.value)
		}

		*field.dst = parsed
	}

	return candle, nil
}

// SyncInstruments creates an Instrument row for every venue market whose base
// asset is not tracked yet. New instruments start with trading disabled; an
// operator enables them explicitly. Returns the symbols created this cycle.
func (s *Syncer) SyncInstruments(ctx context.Context) ([]string, error) {
	markets, err := s.client.GetMarkets(ctx)
	if err != nil {
		return nil, err
	}

	var created []string

	for key, market := range markets {
		instrument := types.Instrument{
			Symbol:         market.BaseAsset,
			Name:           market.BaseAsset,
			MarketID:       key,
			TradingEnabled: false,
		}

		isNew, err := s.store.CreateInstrumentIfAbsent(ctx, instrument)
		if err != nil {
			return created, err
		}

		if isNew {
			s.logger.Info("tracking new instrument",
				zap.String("instrument", instrument.Symbol),
				zap.String("market", key),
			)
			created = append(created, instrument.Symbol)
		}
	}

	return created, nil
}
