// Package repository persists candles, positions, instruments, settings and
// sync audit records in DuckDB. The core treats it as the single storage
// boundary; all monetary quantities are stored as fixed-point decimals.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/helios-quant/pairtrade/internal/logger"
	"github.com/helios-quant/pairtrade/internal/types"
	"github.com/helios-quant/pairtrade/pkg/errors"
)

// Store is the DuckDB-backed repository.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
	sq     sq.StatementBuilderType
}

// NewStore opens (or creates) the DuckDB database at path. Use ":memory:" for
// an ephemeral store in tests.
func NewStore(path string, log *logger.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to open database", err)
	}

	return &Store{
		db:     db,
		logger: log,
		sq:     sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

// Initialize creates the tables. Idempotent.
func (s *Store) Initialize() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS instruments (
			symbol TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			market_id TEXT NOT NULL,
			trading_enabled BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS candles (
			instrument TEXT NOT NULL,
			period_start TIMESTAMP NOT NULL,
			period_end TIMESTAMP NOT NULL,
			resolution TEXT NOT NULL,
			open DECIMAL(30,8) NOT NULL,
			high DECIMAL(30,8) NOT NULL,
			low DECIMAL(30,8) NOT NULL,
			close DECIMAL(30,8) NOT NULL,
			PRIMARY KEY (instrument, period_start)
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			instrument TEXT NOT NULL,
			base_instrument TEXT NOT NULL,
			position_size DECIMAL(30,8) NOT NULL,
			input_instr_price DECIMAL(30,8) NOT NULL,
			input_base_price DECIMAL(30,8) NOT NULL,
			opened_at TIMESTAMP NOT NULL,
			execution TEXT NOT NULL,
			PRIMARY KEY (instrument, base_instrument)
		)`,
		`CREATE TABLE IF NOT EXISTS sync_history (
			date TIMESTAMP NOT NULL,
			sync_type TEXT NOT NULL,
			records_synced INTEGER NOT NULL DEFAULT 0,
			extra_data TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY,
			enable_trades BOOLEAN NOT NULL DEFAULT FALSE
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(errors.ErrCodeStoreFailed, "failed to create tables", err)
		}
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertCandle appends one candle. Candles are never mutated after creation;
// a second insert for the same (instrument, period_start) fails on the
// primary key.
func (s *Store) InsertCandle(ctx context.Context, candle types.Candle) error {
	query := s.sq.
		Insert("candles").
		Columns("instrument", "period_start", "period_end", "resolution", "open", "high", "low", "close").
		Values(
			candle.Instrument,
			candle.PeriodStart.UTC(),
			candle.PeriodEnd.UTC(),
			candle.Resolution,
			candle.Open.String(),
			candle.High.String(),
			candle.Low.String(),
			candle.Close.String(),
		)

	if _, err := query.RunWith(s.db).ExecContext(ctx); err != nil {
		return errors.Wrapf(errors.ErrCodeStoreFailed, err, "failed to insert candle for %s at %s", candle.Instrument, candle.PeriodStart)
	}

	return nil
}

// CandleExists reports whether a candle row exists for (instrument, periodStart).
func (s *Store) CandleExists(ctx context.Context, instrument string, periodStart time.Time) (bool, error) {
	var count int

	err := s.sq.
		Select("COUNT(*)").
		From("candles").
		Where(sq.Eq{"instrument": instrument, "period_start": periodStart.UTC()}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&count)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeQueryFailed, "failed to check candle existence", err)
	}

	return count > 0, nil
}

// CountCandles returns the number of stored candles for an instrument.
func (s *Store) CountCandles(ctx context.Context, instrument string) (int, error) {
	var count int

	err := s.sq.
		Select("COUNT(*)").
		From("candles").
		Where(sq.Eq{"instrument": instrument}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&count)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count candles", err)
	}

	return count, nil
}

// CloseNearest returns the close of the candle whose period end is nearest to
// at, looking at both the nearest following and nearest preceding candle and
// breaking ties toward the earlier one.
func (s *Store) CloseNearest(ctx context.Context, instrument string, at time.Time) (decimal.Decimal, error) {
	after, afterEnd, afterOK, err := s.closeBoundary(ctx, instrument, at, true)
	if err != nil {
		return decimal.Decimal{}, err
	}

	before, beforeEnd, beforeOK, err := s.closeBoundary(ctx, instrument, at, false)
	if err != nil {
		return decimal.Decimal{}, err
	}

	switch {
	case afterOK && beforeOK:
		if absDuration(afterEnd.Sub(at)) < absDuration(at.Sub(beforeEnd)) {
			return after, nil
		}

		return before, nil
	case afterOK:
		return after, nil
	case beforeOK:
		return before, nil
	}

	return decimal.Decimal{}, errors.Newf(errors.ErrCodeRecordNotFound, "no candle for %s near %s", instrument, at.Format(time.RFC3339))
}

func (s *Store) closeBoundary(ctx context.Context, instrument string, at time.Time, following bool) (decimal.Decimal, time.Time, bool, error) {
	query := s.sq.
		Select("CAST(close AS VARCHAR)", "period_end").
		From("candles").
		Where(sq.Eq{"instrument": instrument}).
		Limit(1)

	if following {
		query = query.Where(sq.GtOrEq{"period_end": at.UTC()}).OrderBy("period_end ASC")
	} else {
		query = query.Where(sq.LtOrEq{"period_end": at.UTC()}).OrderBy("period_end DESC")
	}

	var (
		closeStr  string
		periodEnd time.Time
	)

	err := query.RunWith(s.db).QueryRowContext(ctx).Scan(&closeStr, &periodEnd)
	if err == sql.ErrNoRows {
		return decimal.Decimal{}, time.Time{}, false, nil
	}

	if err != nil {
		return decimal.Decimal{}, time.Time{}, false, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query nearest candle", err)
	}

	close, err := decimal.NewFromString(closeStr)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, false, errors.Wrapf(errors.ErrCodeQueryFailed, err, "bad stored close %q", closeStr)
	}

	return close, periodEnd, true, nil
}

// ClosesInRange returns daily closes for an instrument with period end in
// [start, end), ascending by period end.
func (s *Store) ClosesInRange(ctx context.Context, instrument string, start, end time.Time) ([]decimal.Decimal, error) {
	rows, err := s.sq.
		Select("CAST(close AS VARCHAR)").
		From("candles").
		Where(sq.Eq{"instrument": instrument}).
		Where(sq.GtOrEq{"period_end": start.UTC()}).
		Where(sq.Lt{"period_end": end.UTC()}).
		OrderBy("period_end ASC").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query closes", err)
	}
	defer rows.Close()

	var closes []decimal.Decimal

	for rows.Next() {
		var closeStr string
		if err := rows.Scan(&closeStr); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan close", err)
		}

		close, err := decimal.NewFromString(closeStr)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "bad stored close %q", closeStr)
		}

		closes = append(closes, close)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating closes", err)
	}

	return closes, nil
}

// CreatePosition appends one position. The (instrument, base_instrument)
// primary key is the uniqueness guard closing the check-then-act race: a
// concurrent second entry for the same pair fails here atomically.
func (s *Store) CreatePosition(ctx context.Context, position types.Position) error {
	execution := position.Execution
	if execution == nil {
		execution = json.RawMessage("{}")
	}

	query := s.sq.
		Insert("positions").
		Columns("instrument", "base_instrument", "position_size", "input_instr_price", "input_base_price", "opened_at", "execution").
		Values(
			position.Instrument,
			position.BaseInstrument,
			position.PositionSize.String(),
			position.InputInstrPrice.String(),
			position.InputBasePrice.String(),
			position.OpenedAt.UTC(),
			string(execution),
		)

	if _, err := query.RunWith(s.db).ExecContext(ctx); err != nil {
		if isConstraintViolation(err) {
			return errors.Wrapf(errors.ErrCodePositionExists, err, "position already open for %s/%s", position.Instrument, position.BaseInstrument)
		}

		return errors.Wrapf(errors.ErrCodeStoreFailed, err, "failed to create position for %s/%s", position.Instrument, position.BaseInstrument)
	}

	return nil
}

// HasPosition reports whether a position exists for (instrument, base).
func (s *Store) HasPosition(ctx context.Context, instrument, base string) (bool, error) {
	var count int

	err := s.sq.
		Select("COUNT(*)").
		From("positions").
		Where(sq.Eq{"instrument": instrument, "base_instrument": base}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&count)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeQueryFailed, "failed to check position existence", err)
	}

	return count > 0, nil
}

// AppendSyncHistory writes one audit record. Records are write-once.
func (s *Store) AppendSyncHistory(ctx context.Context, record types.SyncHistory) error {
	extra := record.ExtraData
	if extra == nil {
		extra = json.RawMessage("{}")
	}

	query := s.sq.
		Insert("sync_history").
		Columns("date", "sync_type", "records_synced", "extra_data").
		Values(record.Date.UTC(), string(record.SyncType), record.RecordsSynced, string(extra))

	if _, err := query.RunWith(s.db).ExecContext(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to append sync history", err)
	}

	return nil
}

// ListSyncHistory returns audit records of one sync type, newest first.
func (s *Store) ListSyncHistory(ctx context.Context, syncType types.SyncType) ([]types.SyncHistory, error) {
	rows, err := s.sq.
		Select("date", "sync_type", "records_synced", "extra_data").
		From("sync_history").
		Where(sq.Eq{"sync_type": string(syncType)}).
		OrderBy("date DESC").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query sync history", err)
	}
	defer rows.Close()

	var records []types.SyncHistory

	for rows.Next() {
		var (
			record types.SyncHistory
			st     string
			extra  string
		)

		if err := rows.Scan(&record.Date, &st, &record.RecordsSynced, &extra); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan sync history", err)
		}

		record.SyncType = types.SyncType(st)
		record.ExtraData = json.RawMessage(extra)
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating sync history", err)
	}

	return records, nil
}

// GetSettings returns the single settings row. A missing row reads as
// trading disabled.
func (s *Store) GetSettings(ctx context.Context) (types.Settings, error) {
	var enabled bool

	err := s.sq.
		Select("enable_trades").
		From("settings").
		Where(sq.Eq{"id": 1}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&enabled)
	if err == sql.ErrNoRows {
		return types.Settings{EnableTrades: false}, nil
	}

	if err != nil {
		return types.Settings{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read settings", err)
	}

	return types.Settings{EnableTrades: enabled}, nil
}

// SetEnableTrades upserts the settings toggle. Operator tooling only; the
// core never writes settings.
func (s *Store) SetEnableTrades(ctx context.Context, enabled bool) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, enable_trades) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET enable_trades = EXCLUDED.enable_trades
	`, enabled); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to update settings", err)
	}

	return nil
}

// ListInstruments returns all known instruments ordered by symbol. When
// tradingOnly is set, only trading-enabled instruments are returned.
func (s *Store) ListInstruments(ctx context.Context, tradingOnly bool) ([]types.Instrument, error) {
	query := s.sq.
		Select("symbol", "name", "market_id", "trading_enabled").
		From("instruments").
		OrderBy("symbol ASC")

	if tradingOnly {
		query = query.Where(sq.Eq{"trading_enabled": true})
	}

	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query instruments", err)
	}
	defer rows.Close()

	var instruments []types.Instrument

	for rows.Next() {
		var instrument types.Instrument
		if err := rows.Scan(&instrument.Symbol, &instrument.Name, &instrument.MarketID, &instrument.TradingEnabled); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan instrument", err)
		}

		instruments = append(instruments, instrument)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating instruments", err)
	}

	return instruments, nil
}

// GetInstrument returns one instrument by symbol.
func (s *Store) GetInstrument(ctx context.Context, symbol string) (types.Instrument, error) {
	var instrument types.Instrument

	err := s.sq.
		Select("symbol", "name", "market_id", "trading_enabled").
		From("instruments").
		Where(sq.Eq{"symbol": symbol}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&instrument.Symbol, &instrument.Name, &instrument.MarketID, &instrument.TradingEnabled)
	if err == sql.ErrNoRows {
		return types.Instrument{}, errors.Newf(errors.ErrCodeRecordNotFound, "instrument %s not found", symbol)
	}

	if err != nil {
		return types.Instrument{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read instrument", err)
	}

	return instrument, nil
}

// CreateInstrumentIfAbsent inserts an instrument unless one already exists
// for the symbol. Returns true when a row was created.
func (s *Store) CreateInstrumentIfAbsent(ctx context.Context, instrument types.Instrument) (bool, error) {
	if _, err := s.GetInstrument(ctx, instrument.Symbol); err == nil {
		return false, nil
	} else if !errors.HasCode(err, errors.ErrCodeRecordNotFound) {
		return false, err
	}

	query := s.sq.
		Insert("instruments").
		Columns("symbol", "name", "market_id", "trading_enabled").
		Values(instrument.Symbol, instrument.Name, instrument.MarketID, instrument.TradingEnabled)

	if _, err := query.RunWith(s.db).ExecContext(ctx); err != nil {
		if isConstraintViolation(err) {
			return false, nil
		}

		return false, errors.Wrapf(errors.ErrCodeStoreFailed, err, "failed to create instrument %s", instrument.Symbol)
	}

	s.logger.Info("created instrument", zap.String("symbol", instrument.Symbol))

	return true, nil
}

// SetInstrumentTradingEnabled flips an instrument's eligibility flag.
func (s *Store) SetInstrumentTradingEnabled(ctx context.Context, symbol string, enabled bool) error {
	result, err := s.sq.
		Update("instruments").
		Set("trading_enabled", enabled).
		Where(sq.Eq{"symbol": symbol}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStoreFailed, err, "failed to update instrument %s", symbol)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return errors.Newf(errors.ErrCodeRecordNotFound, "instrument %s not found", symbol)
	}

	return nil
}

func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "constraint")
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}

	return d
}
