// Package binance implements the Binance USDT-M futures venue: a signed REST
// client plus a reconnecting market data websocket.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tradeking/pkg/exchanges/common"
)

// throttleDelay is how long a request is held back when weight usage is
// close to the venue's ban threshold.
const throttleDelay = time.Second

// Config holds Binance USDT-M futures credentials.
type Config struct {
	APIKey     string
	APISecret  string
	Testnet    bool
	RecvWindow int64 // ms
}

// Client handles Binance USDT-M futures REST calls.
type Client struct {
	cfg         Config
	baseURL     string
	httpClient  *http.Client
	timeSync    *common.TimeSync
	rateLimiter *common.RateLimiter
}

// NewClient creates a new USDT-M futures REST client.
func NewClient(cfg Config) *Client {
	base := "https://fapi.binance.com"
	if cfg.Testnet {
		base = "https://testnet.binancefuture.com"
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5000
	}
	c := &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	c.timeSync = common.NewTimeSync(func() (int64, error) {
		return c.GetServerTime()
	})
	c.rateLimiter = common.NewRateLimiter(2400, time.Minute) // 2400 weight/min for futures
	return c
}

// TimeSync exposes the server clock synchronizer so the owner can start its
// periodic refresh.
func (c *Client) TimeSync() *common.TimeSync { return c.timeSync }

// GetServerTime fetches futures server time.
func (c *Client) GetServerTime() (int64, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/fapi/v1/time")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("server time status %d: %s", resp.StatusCode, string(b))
	}
	var res struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return 0, err
	}
	return res.ServerTime, nil
}

// GetExchangeInfo fetches the tradable instrument catalog.
func (c *Client) GetExchangeInfo(ctx context.Context) ([]common.Contract, error) {
	body, err := c.doPublic(ctx, "/fapi/v1/exchangeInfo", nil)
	if err != nil {
		return nil, err
	}
	var info struct {
		Symbols []struct {
			Symbol            string `json:"symbol"`
			Status            string `json:"status"`
			BaseAsset         string `json:"baseAsset"`
			QuoteAsset        string `json:"quoteAsset"`
			PricePrecision    int    `json:"pricePrecision"`
			QuantityPrecision int    `json:"quantityPrecision"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode exchange info: %w", err)
	}

	out := make([]common.Contract, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		out = append(out, common.Contract{
			Symbol:        s.Symbol,
			Exchange:      Platform,
			BaseAsset:     s.BaseAsset,
			QuoteAsset:    s.QuoteAsset,
			PriceDecimals: s.PricePrecision,
			TickSize:      stepFromPrecision(s.PricePrecision),
			LotSize:       stepFromPrecision(s.QuantityPrecision),
			Multiplier:    1,
		})
	}
	return out, nil
}

// GetAccountBalances fetches wallet balances keyed by asset.
func (c *Client) GetAccountBalances(ctx context.Context) (map[string]common.Balance, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return nil, errors.New("binance: API key/secret required")
	}
	params := url.Values{}
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	body, err := c.doSigned(ctx, http.MethodGet, c.baseURL+"/fapi/v1/account", params)
	if err != nil {
		return nil, err
	}
	var info struct {
		Assets []struct {
			Asset         string `json:"asset"`
			WalletBalance string `json:"walletBalance"`
		} `json:"assets"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}

	out := make(map[string]common.Balance, len(info.Assets))
	for _, a := range info.Assets {
		wallet, err := strconv.ParseFloat(a.WalletBalance, 64)
		if err != nil {
			continue
		}
		out[a.Asset] = common.Balance{Asset: a.Asset, WalletBalance: wallet}
	}
	return out, nil
}

// GetHistoricalCandles fetches up to 1000 candles for a symbol, oldest first.
func (c *Client) GetHistoricalCandles(ctx context.Context, contract common.Contract, timeframe string) ([]common.Candle, error) {
	if _, err := common.TimeframeMs(timeframe); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("symbol", contract.Symbol)
	params.Set("interval", timeframe)
	params.Set("limit", "1000")
	body, err := c.doPublic(ctx, "/fapi/v1/klines", params)
	if err != nil {
		return nil, err
	}

	var raw [][]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	out := make([]common.Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}
		ts, ok := k[0].(float64)
		if !ok {
			continue
		}
		open, err1 := parseFloatField(k[1])
		high, err2 := parseFloatField(k[2])
		low, err3 := parseFloatField(k[3])
		closePx, err4 := parseFloatField(k[4])
		vol, err5 := parseFloatField(k[5])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		out = append(out, common.Candle{
			Timestamp: int64(ts),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePx,
			Volume:    vol,
			Timeframe: timeframe,
		})
	}
	return out, nil
}

// PlaceOrder submits an order with quantity and price rounded to the
// contract's lot and tick sizes.
func (c *Client) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderStatus, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return common.OrderStatus{}, errors.New("binance: API key/secret required")
	}
	params := url.Values{}
	params.Set("symbol", req.Contract.Symbol)
	params.Set("side", sideToVenue(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", formatFloat(req.Contract.RoundQty(req.Qty)))
	if req.Type == common.OrderTypeLimit {
		params.Set("price", req.Contract.RoundPrice(req.Price))
		tif := req.TimeInForce
		if tif == "" {
			tif = "GTC"
		}
		params.Set("timeInForce", tif)
	}
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))

	body, err := c.doSigned(ctx, http.MethodPost, c.baseURL+"/fapi/v1/order", params)
	if err != nil {
		return common.OrderStatus{}, err
	}
	return decodeOrder(body)
}

// CancelOrder cancels an order by id.
func (c *Client) CancelOrder(ctx context.Context, contract common.Contract, orderID string) (common.OrderStatus, error) {
	params := url.Values{}
	params.Set("symbol", contract.Symbol)
	params.Set("orderId", orderID)
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))

	body, err := c.doSigned(ctx, http.MethodDelete, c.baseURL+"/fapi/v1/order", params)
	if err != nil {
		return common.OrderStatus{}, err
	}
	return decodeOrder(body)
}

// GetOrderStatus fetches the current status of an order by id.
func (c *Client) GetOrderStatus(ctx context.Context, contract common.Contract, orderID string) (common.OrderStatus, error) {
	params := url.Values{}
	params.Set("symbol", contract.Symbol)
	params.Set("orderId", orderID)
	params.Set("timestamp", strconv.FormatInt(c.now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))

	body, err := c.doSigned(ctx, http.MethodGet, c.baseURL+"/fapi/v1/order", params)
	if err != nil {
		return common.OrderStatus{}, err
	}
	return decodeOrder(body)
}

// now returns a timestamp adjusted by the server clock offset when known.
func (c *Client) now() int64 {
	if c.timeSync != nil && c.timeSync.Offset() != 0 {
		return c.timeSync.Now()
	}
	return time.Now().UnixMilli()
}

// throttle holds a request back when weight usage is near the ban threshold,
// giving the usage window a chance to roll over.
func (c *Client) throttle(ctx context.Context) error {
	if c.rateLimiter == nil || !c.rateLimiter.ShouldDelay() {
		return nil
	}
	used, limit, _ := c.rateLimiter.Usage()
	logrus.Warnf("weight usage %d/%d, delaying request", used, limit)
	select {
	case <-time.After(throttleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// doPublic sends an unsigned GET.
func (c *Client) doPublic(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if c.rateLimiter != nil {
		c.rateLimiter.UpdateFromHeader(res.Header.Get("X-MBX-USED-WEIGHT-1M"))
	}

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("binance GET %s status %d: %s", path, res.StatusCode, string(body))
	}
	return body, nil
}

// doSigned handles signing and sending authenticated requests.
func (c *Client) doSigned(ctx context.Context, method, endpoint string, params url.Values) ([]byte, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	sig := sign(params.Encode(), c.cfg.APISecret)
	params.Set("signature", sig)

	var (
		req *http.Request
		err error
	)
	encoded := params.Encode()
	switch method {
	case http.MethodGet, http.MethodDelete:
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+encoded, nil)
	default:
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(encoded))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if c.rateLimiter != nil {
		c.rateLimiter.UpdateFromHeader(res.Header.Get("X-MBX-USED-WEIGHT-1M"))
	}

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("binance %s %s status %d: %s", method, endpoint, res.StatusCode, string(body))
	}
	return body, nil
}

type orderResp struct {
	OrderID     int64  `json:"orderId"`
	Status      string `json:"status"`
	AvgPrice    string `json:"avgPrice"`
	ExecutedQty string `json:"executedQty"`
}

func decodeOrder(body []byte) (common.OrderStatus, error) {
	var resp orderResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return common.OrderStatus{}, fmt.Errorf("decode order: %w", err)
	}
	avg, _ := strconv.ParseFloat(resp.AvgPrice, 64)
	qty, _ := strconv.ParseFloat(resp.ExecutedQty, 64)
	return common.OrderStatus{
		OrderID:     strconv.FormatInt(resp.OrderID, 10),
		Status:      mapState(resp.Status),
		AvgPrice:    avg,
		ExecutedQty: qty,
	}, nil
}

func mapState(s string) common.OrderState {
	switch s {
	case "NEW":
		return common.StateNew
	case "PARTIALLY_FILLED":
		return common.StatePartial
	case "FILLED":
		return common.StateFilled
	case "CANCELED", "EXPIRED":
		return common.StateCanceled
	case "REJECTED":
		return common.StateRejected
	default:
		return common.StateUnknown
	}
}

func sideToVenue(s common.Side) string {
	if s == common.SideShort {
		return "SELL"
	}
	return "BUY"
}

func parseFloatField(v any) (float64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseFloat(t, 64)
	case float64:
		return t, nil
	default:
		return 0, fmt.Errorf("unexpected kline field type %T", v)
	}
}
