package executor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/helios-quant/pairtrade/internal/logger"
	"github.com/helios-quant/pairtrade/internal/types"
	"github.com/helios-quant/pairtrade/mocks"
	"github.com/helios-quant/pairtrade/pkg/errors"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

type fakePositionWriter struct {
	positions []types.Position
	err       error
}

func (w *fakePositionWriter) CreatePosition(_ context.Context, position types.Position) error {
	if w.err != nil {
		return w.err
	}

	w.positions = append(w.positions, position)

	return nil
}

type ExecutorTestSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	client *mocks.MockClient
	writer *fakePositionWriter
	clock  *fakeClock
	ctx    context.Context
	doge   types.Instrument
	eth    types.Instrument
}

func TestExecutorSuite(t *testing.T) {
	suite.Run(t, new(ExecutorTestSuite))
}

func (suite *ExecutorTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.client = mocks.NewMockClient(suite.ctrl)
	suite.writer = &fakePositionWriter{}
	suite.clock = &fakeClock{now: time.Date(2023, 6, 12, 10, 0, 0, 0, time.UTC)}
	suite.ctx = context.Background()
	suite.doge = types.Instrument{Symbol: "DOGE", MarketID: "DOGE-USD"}
	suite.eth = types.Instrument{Symbol: "ETH", MarketID: "ETH-USD"}
}

func (suite *ExecutorTestSuite) newExecutor() *Executor {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)

	return newExecutor(suite.client, suite.writer, suite.clock, Config{}, log)
}

func (suite *ExecutorTestSuite) TestOpensPairPosition() {
	start := suite.clock.now

	suite.client.EXPECT().GetPendingOrders(gomock.Any()).Return(nil, nil).Times(2)

	suite.client.EXPECT().GetPrice(gomock.Any(), "DOGE-USD").Return(decimal.RequireFromString("0.0617"), nil)
	suite.client.EXPECT().GetTickAndStep(gomock.Any(), "DOGE-USD").
		Return(decimal.RequireFromString("0.0001"), decimal.RequireFromString("10"), nil)

	suite.client.EXPECT().GetPrice(gomock.Any(), "ETH-USD").Return(decimal.RequireFromString("1752.34"), nil)
	suite.client.EXPECT().GetTickAndStep(gomock.Any(), "ETH-USD").
		Return(decimal.RequireFromString("0.1"), decimal.RequireFromString("0.001"), nil)

	var submitted []types.OrderParams

	suite.client.EXPECT().SubmitOrder(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params types.OrderParams) (types.OrderReceipt, error) {
			submitted = append(submitted, params)
			return types.OrderReceipt{ID: "order", Status: "PENDING", Raw: json.RawMessage(`{"order":{}}`)}, nil
		}).Times(2)

	position, err := suite.newExecutor().OpenPairPosition(suite.ctx, suite.doge, suite.eth)
	suite.Require().NoError(err)

	suite.Require().Len(submitted, 2)

	short := submitted[0]
	suite.Equal("DOGE-USD", short.Market)
	suite.Equal(types.SideSell, short.Side)
	suite.Equal(types.OrderKindLimit, short.Kind)
	suite.False(short.PostOnly)
	suite.True(short.Price.Equal(decimal.RequireFromString("0.0617")))
	// 100 USD at 0.0617 is ~1620.7; step 10 truncates to the leading magnitude.
	suite.True(short.Size.Equal(decimal.RequireFromString("1620")), "short size %s", short.Size)
	suite.Equal("0.0015", short.LimitFee)
	suite.Equal(start.Add(75*time.Second).Unix(), short.ExpirationEpochSeconds)
	suite.NotEmpty(short.ClientID)

	long := submitted[1]
	suite.Equal("ETH-USD", long.Market)
	suite.Equal(types.SideBuy, long.Side)
	suite.True(long.Price.Equal(decimal.RequireFromString("1752.3")))
	suite.True(long.Size.Equal(decimal.RequireFromString("0.057")), "long size %s", long.Size)

	suite.Require().Len(suite.writer.positions, 1)
	suite.Equal(position, suite.writer.positions[0])
	suite.Equal("DOGE", position.Instrument)
	suite.Equal("ETH", position.BaseInstrument)
	suite.True(position.PositionSize.Equal(decimal.NewFromInt(200)))
	suite.True(position.InputInstrPrice.Equal(decimal.RequireFromString("0.0617")))
	suite.True(position.InputBasePrice.Equal(decimal.RequireFromString("1752.3")))

	var execution map[string]types.LegExecution
	suite.Require().NoError(json.Unmarshal(position.Execution, &execution))
	suite.Contains(execution, "short")
	suite.Contains(execution, "long")

	// The only sleep on the happy path is the settle delay.
	suite.Equal([]time.Duration{15 * time.Second}, suite.clock.sleeps)
}

func (suite *ExecutorTestSuite) TestPendingOrderTimeout() {
	pending := []types.OrderReceipt{{ID: "stuck", Status: "PENDING"}}
	suite.client.EXPECT().GetPendingOrders(gomock.Any()).Return(pending, nil).AnyTimes()

	_, err := suite.newExecutor().OpenPairPosition(suite.ctx, suite.doge, suite.eth)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodePendingOrderTimeout))

	// 120s timeout at a 10s poll interval: twelve sleeps, then the failure.
	suite.Len(suite.clock.sleeps, 12)
	suite.Empty(suite.writer.positions)
}

func (suite *ExecutorTestSuite) TestSecondBarrierTimeoutLeavesFirstLegOnly() {
	calls := 0
	suite.client.EXPECT().GetPendingOrders(gomock.Any()).
		DoAndReturn(func(context.Context) ([]types.OrderReceipt, error) {
			calls++
			if calls == 1 {
				return nil, nil
			}
			return []types.OrderReceipt{{ID: "stuck", Status: "PENDING"}}, nil
		}).AnyTimes()

	suite.client.EXPECT().GetPrice(gomock.Any(), "DOGE-USD").Return(decimal.RequireFromString("0.0617"), nil)
	suite.client.EXPECT().GetTickAndStep(gomock.Any(), "DOGE-USD").
		Return(decimal.RequireFromString("0.0001"), decimal.RequireFromString("10"), nil)

	suite.client.EXPECT().SubmitOrder(gomock.Any(), gomock.Any()).
		Return(types.OrderReceipt{ID: "short-leg"}, nil).Times(1)

	_, err := suite.newExecutor().OpenPairPosition(suite.ctx, suite.doge, suite.eth)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodePendingOrderTimeout))
	suite.Empty(suite.writer.positions)
}

func (suite *ExecutorTestSuite) TestPriceUnderHalfTickFailsLeg() {
	suite.client.EXPECT().GetPendingOrders(gomock.Any()).Return(nil, nil)
	// 0.004 rounds to 0.00 at a 0.01 tick.
	suite.client.EXPECT().GetPrice(gomock.Any(), "DOGE-USD").Return(decimal.RequireFromString("0.004"), nil)
	suite.client.EXPECT().GetTickAndStep(gomock.Any(), "DOGE-USD").
		Return(decimal.RequireFromString("0.01"), decimal.RequireFromString("10"), nil)

	_, err := suite.newExecutor().OpenPairPosition(suite.ctx, suite.doge, suite.eth)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeOrderFailed))
	suite.Empty(suite.writer.positions)
}

func (suite *ExecutorTestSuite) TestPersistFailurePropagates() {
	suite.writer.err = errors.New(errors.ErrCodePositionExists, "position already open for DOGE/ETH")

	suite.client.EXPECT().GetPendingOrders(gomock.Any()).Return(nil, nil).Times(2)
	suite.client.EXPECT().GetPrice(gomock.Any(), gomock.Any()).Return(decimal.RequireFromString("100"), nil).Times(2)
	suite.client.EXPECT().GetTickAndStep(gomock.Any(), gomock.Any()).
		Return(decimal.RequireFromString("0.1"), decimal.RequireFromString("0.1"), nil).Times(2)
	suite.client.EXPECT().SubmitOrder(gomock.Any(), gomock.Any()).
		Return(types.OrderReceipt{ID: "order"}, nil).Times(2)

	_, err := suite.newExecutor().OpenPairPosition(suite.ctx, suite.doge, suite.eth)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodePositionExists))
}
