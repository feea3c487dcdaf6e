// Package bitmex implements the BitMEX derivatives venue: an
// expiring-signature REST client plus a reconnecting market data websocket.
package bitmex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tradeking/pkg/exchanges/common"
)

// Config holds BitMEX credentials.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
}

// Client handles BitMEX REST calls. Every request is signed with a
// short-lived expiry so a replayed request is rejected by the venue.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new BitMEX REST client.
func NewClient(cfg Config) *Client {
	base := "https://www.bitmex.com"
	if cfg.Testnet {
		base = "https://testnet.bitmex.com"
	}
	return &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// instrumentResp is the subset of the instrument catalog the core uses.
type instrumentResp struct {
	Symbol        string  `json:"symbol"`
	State         string  `json:"state"`
	RootSymbol    string  `json:"rootSymbol"`
	QuoteCurrency string  `json:"quoteCurrency"`
	TickSize      float64 `json:"tickSize"`
	LotSize       float64 `json:"lotSize"`
	Multiplier    float64 `json:"multiplier"`
	IsInverse     bool    `json:"isInverse"`
	IsQuanto      bool    `json:"isQuanto"`
}

// GetActiveInstruments fetches the active instrument catalog.
func (c *Client) GetActiveInstruments(ctx context.Context) ([]common.Contract, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/instrument/active", nil)
	if err != nil {
		return nil, err
	}
	var raw []instrumentResp
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode instruments: %w", err)
	}

	out := make([]common.Contract, 0, len(raw))
	for _, in := range raw {
		out = append(out, common.Contract{
			Symbol:        in.Symbol,
			Exchange:      Platform,
			BaseAsset:     in.RootSymbol,
			QuoteAsset:    in.QuoteCurrency,
			PriceDecimals: decimalsFromStep(in.TickSize),
			TickSize:      in.TickSize,
			LotSize:       in.LotSize,
			Inverse:       in.IsInverse,
			Quanto:        in.IsQuanto,
			Multiplier:    in.Multiplier,
		})
	}
	return out, nil
}

// GetBalances fetches margin balances for all currencies. XBt balances are
// denominated in satoshis, as the venue reports them.
func (c *Client) GetBalances(ctx context.Context) (map[string]common.Balance, error) {
	params := url.Values{}
	params.Set("currency", "all")
	body, err := c.do(ctx, http.MethodGet, "/api/v1/user/margin", params)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Currency      string  `json:"currency"`
		WalletBalance float64 `json:"walletBalance"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode margin: %w", err)
	}

	out := make(map[string]common.Balance, len(raw))
	for _, m := range raw {
		out[m.Currency] = common.Balance{Asset: m.Currency, WalletBalance: m.WalletBalance}
	}
	return out, nil
}

// GetHistoricalCandles fetches up to 500 bucketed candles, oldest first.
// Buckets with missing open or close data are dropped.
func (c *Client) GetHistoricalCandles(ctx context.Context, contract common.Contract, timeframe string) ([]common.Candle, error) {
	if _, err := common.TimeframeMs(timeframe); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("symbol", contract.Symbol)
	params.Set("binSize", timeframe)
	params.Set("count", "500")
	params.Set("reverse", "true")
	params.Set("partial", "true")
	body, err := c.do(ctx, http.MethodGet, "/api/v1/trade/bucketed", params)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Timestamp string   `json:"timestamp"`
		Open      *float64 `json:"open"`
		High      *float64 `json:"high"`
		Low       *float64 `json:"low"`
		Close     *float64 `json:"close"`
		Volume    float64  `json:"volume"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode bucketed trades: %w", err)
	}

	out := make([]common.Candle, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		b := raw[i]
		if b.Open == nil || b.Close == nil {
			continue
		}
		ts, err := time.Parse(time.RFC3339, b.Timestamp)
		if err != nil {
			continue
		}
		candle := common.Candle{
			Timestamp: ts.UnixMilli(),
			Open:      *b.Open,
			Close:     *b.Close,
			Volume:    b.Volume,
			Timeframe: timeframe,
		}
		if b.High != nil {
			candle.High = *b.High
		} else {
			candle.High = *b.Close
		}
		if b.Low != nil {
			candle.Low = *b.Low
		} else {
			candle.Low = *b.Close
		}
		out = append(out, candle)
	}
	return out, nil
}

// PlaceOrder submits an order with quantity and price rounded to the
// contract's lot and tick sizes.
func (c *Client) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderStatus, error) {
	params := url.Values{}
	params.Set("symbol", req.Contract.Symbol)
	params.Set("side", sideToVenue(req.Side))
	params.Set("orderQty", formatFloat(req.Contract.RoundQty(req.Qty)))
	params.Set("ordType", typeToVenue(req.Type))
	if req.Type == common.OrderTypeLimit {
		params.Set("price", req.Contract.RoundPrice(req.Price))
	}
	if req.TimeInForce != "" {
		params.Set("timeInForce", req.TimeInForce)
	}

	body, err := c.do(ctx, http.MethodPost, "/api/v1/order", params)
	if err != nil {
		return common.OrderStatus{}, err
	}
	var resp orderResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return common.OrderStatus{}, fmt.Errorf("decode order: %w", err)
	}
	return resp.toStatus(), nil
}

// CancelOrder cancels an order by id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (common.OrderStatus, error) {
	params := url.Values{}
	params.Set("orderID", orderID)
	body, err := c.do(ctx, http.MethodDelete, "/api/v1/order", params)
	if err != nil {
		return common.OrderStatus{}, err
	}
	var resp []orderResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return common.OrderStatus{}, fmt.Errorf("decode cancel: %w", err)
	}
	if len(resp) == 0 {
		return common.OrderStatus{}, errors.New("cancel returned no orders")
	}
	return resp[0].toStatus(), nil
}

// GetOrderStatus fetches recent orders for the instrument and picks out the
// requested id; the venue has no direct single-order lookup.
func (c *Client) GetOrderStatus(ctx context.Context, contract common.Contract, orderID string) (common.OrderStatus, error) {
	params := url.Values{}
	params.Set("symbol", contract.Symbol)
	params.Set("reverse", "true")
	body, err := c.do(ctx, http.MethodGet, "/api/v1/order", params)
	if err != nil {
		return common.OrderStatus{}, err
	}
	var resp []orderResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return common.OrderStatus{}, fmt.Errorf("decode orders: %w", err)
	}
	for _, o := range resp {
		if o.OrderID == orderID {
			return o.toStatus(), nil
		}
	}
	return common.OrderStatus{}, fmt.Errorf("order %s not found on %s", orderID, contract.Symbol)
}

// do signs and sends one request. The signature covers the verb, the path
// with its query string and the expiry timestamp.
func (c *Client) do(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	fullPath := path
	if len(params) > 0 {
		fullPath += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+fullPath, nil)
	if err != nil {
		return nil, err
	}

	expires := strconv.FormatInt(time.Now().Unix()+5, 10)
	req.Header.Set("api-key", c.cfg.APIKey)
	req.Header.Set("api-expires", expires)
	req.Header.Set("api-signature", sign(method+fullPath+expires, c.cfg.APISecret))

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("bitmex %s %s status %d: %s", method, path, res.StatusCode, string(body))
	}
	return body, nil
}

type orderResp struct {
	OrderID   string  `json:"orderID"`
	OrdStatus string  `json:"ordStatus"`
	AvgPx     float64 `json:"avgPx"`
	CumQty    float64 `json:"cumQty"`
}

func (o orderResp) toStatus() common.OrderStatus {
	return common.OrderStatus{
		OrderID:     o.OrderID,
		Status:      mapState(o.OrdStatus),
		AvgPrice:    o.AvgPx,
		ExecutedQty: o.CumQty,
	}
}

func mapState(s string) common.OrderState {
	switch s {
	case "New":
		return common.StateNew
	case "PartiallyFilled":
		return common.StatePartial
	case "Filled":
		return common.StateFilled
	case "Canceled":
		return common.StateCanceled
	case "Rejected":
		return common.StateRejected
	default:
		return common.StateUnknown
	}
}

func sideToVenue(s common.Side) string {
	if s == common.SideShort {
		return "Sell"
	}
	return "Buy"
}

func typeToVenue(t common.OrderType) string {
	if t == common.OrderTypeLimit {
		return "Limit"
	}
	return "Market"
}
