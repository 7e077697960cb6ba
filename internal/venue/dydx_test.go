package venue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/helios-quant/pairtrade/internal/logger"
	"github.com/helios-quant/pairtrade/internal/types"
	"github.com/helios-quant/pairtrade/pkg/errors"
)

const marketsPayload = `{
	"markets": {
		"ETH-USD": {
			"market": "ETH-USD",
			"status": "ONLINE",
			"baseAsset": "ETH",
			"quoteAsset": "USD",
			"stepSize": "0.001",
			"tickSize": "0.1",
			"indexPrice": "1752.34",
			"oraclePrice": "1752.10",
			"priceChange24H": "12.5",
			"nextFundingRate": "0.0000125",
			"nextFundingAt": "2023-06-12T09:00:00.000Z",
			"minOrderSize": "0.01",
			"type": "PERPETUAL",
			"initialMarginFraction": "0.05",
			"maintenanceMarginFraction": "0.03",
			"transferMarginFraction": "0.004",
			"volume24H": "12345678.9",
			"trades24H": "54321",
			"openInterest": "98765.4",
			"incrementalInitialMarginFraction": "0.01",
			"incrementalPositionSize": "100",
			"maxPositionSize": "10000",
			"baselinePositionSize": "500",
			"assetResolution": "1000000000",
			"syntheticAssetId": "0x4554482d39"
		},
		"DOGE-USD": {
			"market": "DOGE-USD",
			"status": "ONLINE",
			"baseAsset": "DOGE",
			"quoteAsset": "USD",
			"stepSize": "10",
			"tickSize": "0.0001",
			"indexPrice": "0.0617",
			"oraclePrice": "0.0616",
			"priceChange24H": "-0.001",
			"nextFundingRate": "0.0000125",
			"nextFundingAt": "2023-06-12T09:00:00.000Z",
			"minOrderSize": "20",
			"type": "PERPETUAL",
			"initialMarginFraction": "0.10",
			"maintenanceMarginFraction": "0.05",
			"transferMarginFraction": "0.004",
			"volume24H": "2345678.9",
			"trades24H": "4321",
			"openInterest": "8765.4",
			"incrementalInitialMarginFraction": "0.02",
			"incrementalPositionSize": "10000",
			"maxPositionSize": "1000000",
			"baselinePositionSize": "50000",
			"assetResolution": "10000000",
			"syntheticAssetId": "0x444f47452d35"
		}
	}
}`

type RESTClientTestSuite struct {
	suite.Suite
	server  *httptest.Server
	client  *RESTClient
	pending int
	orders  []types.OrderParams
}

func TestRESTClientSuite(t *testing.T) {
	suite.Run(t, new(RESTClientTestSuite))
}

func (suite *RESTClientTestSuite) SetupTest() {
	suite.pending = 0
	suite.orders = nil

	router := mux.NewRouter()
	router.HandleFunc("/v3/markets", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(marketsPayload))
	}).Methods(http.MethodGet)

	router.HandleFunc("/v3/candles/{market}", func(w http.ResponseWriter, r *http.Request) {
		market := mux.Vars(r)["market"]
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string][]RawCandle{
			"candles": {
				{
					StartedAt:            "2023-06-10T00:00:00.000Z",
					UpdatedAt:            "2023-06-11T00:00:00.000Z",
					Market:               market,
					Resolution:           r.URL.Query().Get("resolution"),
					Low:                  "1740.1",
					High:                 "1760.9",
					Open:                 "1745.0",
					Close:                "1752.3",
					BaseTokenVolume:      "1000",
					Trades:               "500",
					USDVolume:            "1750000",
					StartingOpenInterest: "9000",
				},
			},
		})
	}).Methods(http.MethodGet)

	router.HandleFunc("/v3/orders", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		orders := make([]types.OrderReceipt, 0, suite.pending)
		for i := 0; i < suite.pending; i++ {
			orders = append(orders, types.OrderReceipt{ID: "pending", Status: "PENDING"})
		}
		_ = json.NewEncoder(w).Encode(map[string][]types.OrderReceipt{"orders": orders})
	}).Methods(http.MethodGet)

	router.HandleFunc("/v3/orders", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Order types.OrderParams `json:"order"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		suite.orders = append(suite.orders, body.Order)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]types.OrderReceipt{
			"order": {ID: "order-1", Status: "PENDING"},
		})
	}).Methods(http.MethodPost)

	suite.server = httptest.NewServer(router)

	log, err := logger.NewLogger()
	suite.Require().NoError(err)

	suite.client = NewRESTClient(RESTConfig{Host: suite.server.URL, APIKey: "key", Passphrase: "pass"}, log)
}

func (suite *RESTClientTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *RESTClientTestSuite) TestGetMarkets() {
	markets, err := suite.client.GetMarkets(context.Background())
	suite.Require().NoError(err)
	suite.Len(markets, 2)
	suite.Equal(MarketStatusOnline, markets["ETH-USD"].Status)
	suite.Equal(MarketTypePerpetual, markets["ETH-USD"].Type)
	suite.Equal("ETH", markets["ETH-USD"].BaseAsset)
	suite.Equal(54321, markets["ETH-USD"].Trades24H)
}

func (suite *RESTClientTestSuite) TestGetMarketsRejectsUnknownFields() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"markets": {"ETH-USD": {"market": "ETH-USD", "surpriseField": "x"}}}`))
	}))
	defer server.Close()

	log, err := logger.NewLogger()
	suite.Require().NoError(err)

	client := NewRESTClient(RESTConfig{Host: server.URL}, log)
	_, err = client.GetMarkets(context.Background())
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeVenueDecodeFailed))
}

func (suite *RESTClientTestSuite) TestGetPrice() {
	price, err := suite.client.GetPrice(context.Background(), "ETH-USD")
	suite.Require().NoError(err)
	suite.True(price.Equal(decimal.RequireFromString("1752.34")))
}

func (suite *RESTClientTestSuite) TestGetPriceUnknownMarket() {
	_, err := suite.client.GetPrice(context.Background(), "SHIB-USD")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMarketNotFound))
}

func (suite *RESTClientTestSuite) TestGetTickAndStep() {
	tick, step, err := suite.client.GetTickAndStep(context.Background(), "DOGE-USD")
	suite.Require().NoError(err)
	suite.True(tick.Equal(decimal.RequireFromString("0.0001")))
	suite.True(step.Equal(decimal.RequireFromString("10")))
}

func (suite *RESTClientTestSuite) TestGetCandles() {
	candles, err := suite.client.GetCandles(context.Background(), "ETH-USD", Resolution1Day)
	suite.Require().NoError(err)
	suite.Require().Len(candles, 1)
	suite.Equal("1DAY", candles[0].Resolution)

	start, end, err := candles[0].Times()
	suite.Require().NoError(err)
	suite.Equal("2023-06-10", start.Format("2006-01-02"))
	suite.Equal("2023-06-11", end.Format("2006-01-02"))
}

func (suite *RESTClientTestSuite) TestGetPendingOrders() {
	orders, err := suite.client.GetPendingOrders(context.Background())
	suite.Require().NoError(err)
	suite.Empty(orders)

	suite.pending = 2
	orders, err = suite.client.GetPendingOrders(context.Background())
	suite.Require().NoError(err)
	suite.Len(orders, 2)
}

func (suite *RESTClientTestSuite) TestSubmitOrder() {
	params := types.OrderParams{
		Market:                 "ETH-USD",
		Side:                   types.SideBuy,
		Kind:                   types.OrderKindLimit,
		Size:                   decimal.RequireFromString("0.057"),
		Price:                  decimal.RequireFromString("1752.3"),
		LimitFee:               "0.0015",
		ExpirationEpochSeconds: 1686528075,
		ClientID:               "client-1",
	}

	receipt, err := suite.client.SubmitOrder(context.Background(), params)
	suite.Require().NoError(err)
	suite.Equal("order-1", receipt.ID)
	suite.NotEmpty(receipt.Raw)

	suite.Require().Len(suite.orders, 1)
	suite.Equal(types.SideBuy, suite.orders[0].Side)
	suite.True(suite.orders[0].Price.Equal(decimal.RequireFromString("1752.3")))
}
