package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/helios-quant/pairtrade/internal/logger"
	"github.com/helios-quant/pairtrade/internal/types"
	"github.com/helios-quant/pairtrade/pkg/errors"
)

// RESTConfig configures the venue REST client.
type RESTConfig struct {
	// Host is the venue API base URL, e.g. "https://api.dydx.exchange".
	Host string
	// APIKey and Passphrase authenticate private endpoints (orders).
	APIKey     string
	Passphrase string
	// Timeout bounds each HTTP request. Zero means 30 seconds.
	Timeout time.Duration
}

// RESTClient talks to a dYdX-v3-shaped REST API. Market metadata is fetched
// once and cached for the lifetime of the client; prices and tick/step
// lookups read from the cache the same way the venue's own SDK snapshots
// markets at construction.
type RESTClient struct {
	host       string
	apiKey     string
	passphrase string
	httpClient *http.Client
	logger     *logger.Logger

	mu      sync.Mutex
	markets map[string]Market
}

// NewRESTClient creates a venue client against the configured host.
func NewRESTClient(config RESTConfig, log *logger.Logger) *RESTClient {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &RESTClient{
		host:       config.Host,
		apiKey:     config.APIKey,
		passphrase: config.Passphrase,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

var _ Client = (*RESTClient)(nil)

type marketsResponse struct {
	Markets map[string]Market `json:"markets"`
}

type candlesResponse struct {
	Candles []RawCandle `json:"candles"`
}

type ordersResponse struct {
	Orders []types.OrderReceipt `json:"orders"`
}

type orderResponse struct {
	Order types.OrderReceipt `json:"order"`
}

// GetMarkets implements Client. The markets schema is strict: an unknown
// field in the venue payload fails the decode rather than being dropped.
func (c *RESTClient) GetMarkets(ctx context.Context) (map[string]Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.markets != nil {
		return c.markets, nil
	}

	var resp marketsResponse
	if err := c.get(ctx, "/v3/markets", nil, &resp, true); err != nil {
		return nil, err
	}

	c.markets = resp.Markets

	return c.markets, nil
}

func (c *RESTClient) market(ctx context.Context, market string) (Market, error) {
	markets, err := c.GetMarkets(ctx)
	if err != nil {
		return Market{}, err
	}

	m, ok := markets[market]
	if !ok {
		return Market{}, errors.Newf(errors.ErrCodeMarketNotFound, "market %s not listed by venue", market)
	}

	return m, nil
}

// GetPrice implements Client.
func (c *RESTClient) GetPrice(ctx context.Context, market string) (decimal.Decimal, error) {
	m, err := c.market(ctx, market)
	if err != nil {
		return decimal.Decimal{}, err
	}

	price, err := decimal.NewFromString(m.IndexPrice)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(errors.ErrCodeVenueDecodeFailed, err, "bad index price %q for %s", m.IndexPrice, market)
	}

	return price, nil
}

// GetTickAndStep implements Client.
func (c *RESTClient) GetTickAndStep(ctx context.Context, market string) (decimal.Decimal, decimal.Decimal, error) {
	m, err := c.market(ctx, market)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}

	tick, err := decimal.NewFromString(m.TickSize)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, errors.Wrapf(errors.ErrCodeVenueDecodeFailed, err, "bad tick size %q for %s", m.TickSize, market)
	}

	step, err := decimal.NewFromString(m.StepSize)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, errors.Wrapf(errors.ErrCodeVenueDecodeFailed, err, "bad step size %q for %s", m.StepSize, market)
	}

	return tick, step, nil
}

// GetCandles implements Client.
func (c *RESTClient) GetCandles(ctx context.Context, market string, resolution string) ([]RawCandle, error) {
	query := url.Values{"resolution": {resolution}}

	var resp candlesResponse
	if err := c.get(ctx, "/v3/candles/"+market, query, &resp, false); err != nil {
		return nil, err
	}

	return resp.Candles, nil
}

// GetPendingOrders implements Client.
func (c *RESTClient) GetPendingOrders(ctx context.Context) ([]types.OrderReceipt, error) {
	var resp ordersResponse
	if err := c.get(ctx, "/v3/orders", nil, &resp, false); err != nil {
		return nil, err
	}

	return resp.Orders, nil
}

// SubmitOrder implements Client.
func (c *RESTClient) SubmitOrder(ctx context.Context, params types.OrderParams) (types.OrderReceipt, error) {
	body, err := json.Marshal(map[string]types.OrderParams{"order": params})
	if err != nil {
		return types.OrderReceipt{}, errors.Wrap(errors.ErrCodeVenueRequestFailed, "failed to encode order", err)
	}

	c.logger.Debug("submitting order",
		zap.String("market", params.Market),
		zap.String("side", string(params.Side)),
		zap.String("size", params.Size.String()),
		zap.String("price", params.Price.String()),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/v3/orders", bytes.NewReader(body))
	if err != nil {
		return types.OrderReceipt{}, errors.Wrap(errors.ErrCodeVenueRequestFailed, "failed to build order request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	raw, err := c.do(req)
	if err != nil {
		return types.OrderReceipt{}, err
	}

	var resp orderResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return types.OrderReceipt{}, errors.Wrap(errors.ErrCodeVenueDecodeFailed, "failed to decode order response", err)
	}

	resp.Order.Raw = raw

	return resp.Order, nil
}

// get performs a GET request and decodes the JSON response. strict enables
// DisallowUnknownFields; the markets metadata schema is the only strict one.
func (c *RESTClient) get(ctx context.Context, path string, query url.Values, out any, strict bool) error {
	u := c.host + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeVenueRequestFailed, err, "failed to build request for %s", path)
	}

	c.authorize(req)

	raw, err := c.do(req)
	if err != nil {
		return err
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	if strict {
		decoder.DisallowUnknownFields()
	}

	if err := decoder.Decode(out); err != nil {
		return errors.Wrapf(errors.ErrCodeVenueDecodeFailed, err, "failed to decode response from %s", path)
	}

	return nil
}

func (c *RESTClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeVenueRequestFailed, err, "request to %s failed", req.URL.Path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeVenueRequestFailed, err, "failed to read response from %s", req.URL.Path)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.Newf(errors.ErrCodeVenueRequestFailed, "%s returned %d: %s", req.URL.Path, resp.StatusCode, truncate(raw, 256))
	}

	return raw, nil
}

func (c *RESTClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("DYDX-API-KEY", c.apiKey)
		req.Header.Set("DYDX-PASSPHRASE", c.passphrase)
		req.Header.Set("DYDX-TIMESTAMP", fmt.Sprintf("%d", time.Now().Unix()))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}

	return string(b[:n]) + "..."
}
