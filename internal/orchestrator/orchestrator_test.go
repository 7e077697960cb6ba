package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/helios-quant/pairtrade/internal/logger"
	"github.com/helios-quant/pairtrade/internal/types"
	"github.com/helios-quant/pairtrade/pkg/errors"
)

type fakeStore struct {
	settings    types.Settings
	instruments []types.Instrument
	history     []types.SyncHistory
}

func (s *fakeStore) GetSettings(context.Context) (types.Settings, error) {
	return s.settings, nil
}

func (s *fakeStore) ListInstruments(_ context.Context, tradingOnly bool) ([]types.Instrument, error) {
	if !tradingOnly {
		return s.instruments, nil
	}

	var enabled []types.Instrument
	for _, instrument := range s.instruments {
		if instrument.TradingEnabled {
			enabled = append(enabled, instrument)
		}
	}

	return enabled, nil
}

func (s *fakeStore) GetInstrument(_ context.Context, symbol string) (types.Instrument, error) {
	for _, instrument := range s.instruments {
		if instrument.Symbol == symbol {
			return instrument, nil
		}
	}

	return types.Instrument{}, errors.Newf(errors.ErrCodeRecordNotFound, "instrument %s not found", symbol)
}

func (s *fakeStore) AppendSyncHistory(_ context.Context, record types.SyncHistory) error {
	s.history = append(s.history, record)
	return nil
}

type fakeEvaluator struct {
	decisions map[string]types.Decision
	evaluated []string
}

func (e *fakeEvaluator) Evaluate(_ context.Context, instrument, base types.Instrument, date time.Time) types.Decision {
	e.evaluated = append(e.evaluated, instrument.Symbol)

	if decision, ok := e.decisions[instrument.Symbol]; ok {
		decision.Date = date
		return decision
	}

	return types.Decision{
		Instrument:   instrument.Symbol,
		Base:         base.Symbol,
		Date:         date,
		OpenPosition: false,
		Reason:       optional.Some("30 day correlation is too low"),
	}
}

type fakeExecutor struct {
	opened []string
	errFor map[string]error
}

func (e *fakeExecutor) OpenPairPosition(_ context.Context, instrument, base types.Instrument) (types.Position, error) {
	if err, ok := e.errFor[instrument.Symbol]; ok {
		return types.Position{}, err
	}

	e.opened = append(e.opened, instrument.Symbol)

	return types.Position{Instrument: instrument.Symbol, BaseInstrument: base.Symbol}, nil
}

type OrchestratorTestSuite struct {
	suite.Suite
	store     *fakeStore
	evaluator *fakeEvaluator
	executor  *fakeExecutor
	ctx       context.Context
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}

func (suite *OrchestratorTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.store = &fakeStore{
		settings: types.Settings{EnableTrades: true},
		instruments: []types.Instrument{
			{Symbol: "ETH", MarketID: "ETH-USD", TradingEnabled: true},
			{Symbol: "DOGE", MarketID: "DOGE-USD", TradingEnabled: true},
			{Symbol: "SOL", MarketID: "SOL-USD", TradingEnabled: true},
			{Symbol: "XRP", MarketID: "XRP-USD", TradingEnabled: false},
		},
	}
	suite.evaluator = &fakeEvaluator{decisions: map[string]types.Decision{}}
	suite.executor = &fakeExecutor{errFor: map[string]error{}}
}

func (suite *OrchestratorTestSuite) newOrchestrator() *Orchestrator {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)

	return New(suite.store, suite.evaluator, suite.executor, log)
}

func (suite *OrchestratorTestSuite) decisionMap(record types.SyncHistory) map[string]types.Decision {
	decisions := map[string]types.Decision{}
	suite.Require().NoError(json.Unmarshal(record.ExtraData, &decisions))

	return decisions
}

func (suite *OrchestratorTestSuite) TestOpensPositionsForPositiveDecisions() {
	suite.evaluator.decisions["DOGE"] = types.Decision{
		Instrument:   "DOGE",
		Base:         "ETH",
		OpenPosition: true,
	}

	suite.Require().NoError(suite.newOrchestrator().RunTrades(suite.ctx))

	// The base is never evaluated against itself; disabled instruments are
	// skipped entirely.
	suite.ElementsMatch([]string{"DOGE", "SOL"}, suite.evaluator.evaluated)
	suite.Equal([]string{"DOGE"}, suite.executor.opened)

	suite.Require().Len(suite.store.history, 1)
	record := suite.store.history[0]
	suite.Equal(types.SyncTypeTrades, record.SyncType)
	suite.Equal(1, record.RecordsSynced)

	decisions := suite.decisionMap(record)
	suite.Len(decisions, 2)
	suite.True(decisions["DOGE"].OpenPosition)
	suite.False(decisions["SOL"].OpenPosition)
}

func (suite *OrchestratorTestSuite) TestTradingDisabledStillRecordsDecisions() {
	suite.store.settings.EnableTrades = false
	suite.evaluator.decisions["DOGE"] = types.Decision{
		Instrument:   "DOGE",
		Base:         "ETH",
		OpenPosition: true,
	}

	suite.Require().NoError(suite.newOrchestrator().RunTrades(suite.ctx))

	suite.Empty(suite.executor.opened)

	suite.Require().Len(suite.store.history, 1)
	record := suite.store.history[0]
	suite.Equal(0, record.RecordsSynced)

	decisions := suite.decisionMap(record)
	suite.True(decisions["DOGE"].OpenPosition)
	suite.False(decisions["DOGE"].Error)
}

func (suite *OrchestratorTestSuite) TestExecutorFailureDoesNotStopLoop() {
	suite.evaluator.decisions["DOGE"] = types.Decision{
		Instrument:   "DOGE",
		Base:         "ETH",
		OpenPosition: true,
	}
	suite.evaluator.decisions["SOL"] = types.Decision{
		Instrument:   "SOL",
		Base:         "ETH",
		OpenPosition: true,
	}
	suite.executor.errFor["DOGE"] = errors.New(errors.ErrCodeOrderFailed, "venue rejected order")

	suite.Require().NoError(suite.newOrchestrator().RunTrades(suite.ctx))

	suite.Equal([]string{"SOL"}, suite.executor.opened)

	suite.Require().Len(suite.store.history, 1)
	record := suite.store.history[0]
	suite.Equal(1, record.RecordsSynced)

	decisions := suite.decisionMap(record)
	suite.True(decisions["DOGE"].Error)
	suite.False(decisions["SOL"].Error)
}

func (suite *OrchestratorTestSuite) TestMissingBaseInstrument() {
	suite.store.instruments = suite.store.instruments[1:]

	err := suite.newOrchestrator().RunTrades(suite.ctx)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeEvaluationFailed))
	suite.Empty(suite.store.history)
}
