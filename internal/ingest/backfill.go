package ingest

import (
	"context"
	"fmt"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/helios-quant/pairtrade/internal/logger"
	"github.com/helios-quant/pairtrade/internal/types"
	"github.com/helios-quant/pairtrade/internal/venue"
	"github.com/helios-quant/pairtrade/pkg/errors"
)

// binancePageSize is Binance's kline page limit.
const binancePageSize = 500

// KlineSource fetches one page of daily klines for a symbol. Times are epoch
// milliseconds, Binance's wire convention.
type KlineSource interface {
	Klines(ctx context.Context, symbol string, startMillis, endMillis int64) ([]*binance.Kline, error)
}

type binanceSource struct {
	client *binance.Client
}

// NewBinanceSource wraps the public Binance spot API; no credentials needed
// for kline reads.
func NewBinanceSource() KlineSource {
	return binanceSource{client: binance.NewClient("", "")}
}

func (s binanceSource) Klines(ctx context.Context, symbol string, startMillis, endMillis int64) ([]*binance.Kline, error) {
	klines, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval("1d").
		StartTime(startMillis).
		EndTime(endMillis).
		Limit(binancePageSize).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeVenueRequestFailed, err, "failed to fetch %s klines", symbol)
	}

	return klines, nil
}

// Backfiller seeds historical daily candles from Binance klines for
// instruments whose venue history does not reach back far enough. Inserts are
// idempotent against the candle table, so re-running a backfill is safe.
type Backfiller struct {
	source   KlineSource
	store    Store
	progress bool
	logger   *logger.Logger
}

func NewBackfiller(source KlineSource, store Store, log *logger.Logger) *Backfiller {
	return &Backfiller{
		source: source,
		store:  store,
		logger: log,
	}
}

// WithProgress renders a terminal progress bar during the backfill.
func (b *Backfiller) WithProgress() *Backfiller {
	b.progress = true
	return b
}

// Backfill downloads daily klines for binanceSymbol over [start, end) and
// stores them as candles for the instrument. The newest kline returned is
// always dropped: Binance includes the still-forming day. Returns the number
// of candles inserted.
func (b *Backfiller) Backfill(ctx context.Context, instrument types.Instrument, binanceSymbol string, start, end time.Time) (int, error) {
	totalDays := int(end.Sub(start).Hours() / 24)

	var bar *progressbar.ProgressBar
	if b.progress {
		bar = progressbar.NewOptions(totalDays,
			progressbar.OptionSetDescription(fmt.Sprintf("Backfilling %s", instrument.Symbol)),
			progressbar.OptionShowCount(),
		)
	}

	currentStart := start.UnixMilli()
	endMillis := end.UnixMilli()
	inserted := 0

	for {
		klines, err := b.source.Klines(ctx, binanceSymbol, currentStart, endMillis)
		if err != nil {
			return inserted, err
		}

		lastPage := len(klines) < binancePageSize
		if lastPage && len(klines) > 0 {
			// The newest kline may still be forming.
			klines = klines[:len(klines)-1]
		}

		for _, kline := range klines {
			stored, err := b.storeKline(ctx, instrument.Symbol, kline)
			if err != nil {
				return inserted, err
			}

			if stored {
				inserted++
			}

			if bar != nil {
				_ = bar.Add(1)
			}
		}

		if lastPage {
			break
		}

		// Resume just past the last close to avoid refetching it.
		currentStart = klines[len(klines)-1].CloseTime + 1
		if currentStart >= endMillis {
			break
		}
	}

	b.logger.Info("backfill complete",
		zap.String("instrument", instrument.Symbol),
		zap.String("binance_symbol", binanceSymbol),
		zap.Int("inserted", inserted),
	)

	return inserted, nil
}

func (b *Backfiller) storeKline(ctx context.Context, symbol string, kline *binance.Kline) (bool, error) {
	periodStart := time.UnixMilli(kline.OpenTime).UTC()

	exists, err := b.store.CandleExists(ctx, symbol, periodStart)
	if err != nil {
		return false, err
	}

	if exists {
		return false, nil
	}

	candle := types.Candle{
		Instrument:  symbol,
		PeriodStart: periodStart,
		PeriodEnd:   time.UnixMilli(kline.CloseTime + 1).UTC(),
		Resolution:  venue.Resolution1Day,
	}

	fields := []struct {
		value string
		dst   *decimal.Decimal
	}{
		{kline.Open, &candle.Open},
		{kline.High, &candle.High},
		{kline.Low, &candle.Low},
		{kline.Close, &candle.Close},
	}

	for _, field := range fields {
		parsed, err := decimal.NewFromString(field.value)
		if err != nil {
			return false, errors.Wrapf(errors.ErrCodeVenueDecodeFailed, err, "bad kline price %q", field.value)
		}

		*field.dst = parsed
	}

	if err := b.store.InsertCandle(ctx, candle); err != nil {
		return false, err
	}

	return true, nil
}
