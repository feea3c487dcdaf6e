package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"tradeking/pkg/exchanges/common"
)

// newTestConnector points the REST client at a stub account endpoint and
// reports how many requests reached it.
func newTestConnector(t *testing.T, accountJSON string) (*Connector, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/account" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(accountJSON))
	}))
	t.Cleanup(srv.Close)

	conn := NewConnector(Config{APIKey: "test-key", APISecret: "test-secret", Testnet: true})
	conn.client.baseURL = srv.URL
	return conn, &hits
}

func TestTradeSize(t *testing.T) {
	account := `{"assets":[{"asset":"USDT","walletBalance":"1000"},{"asset":"BNB","walletBalance":"0"}]}`

	tests := []struct {
		name       string
		contract   common.Contract
		price      float64
		balancePct float64
		want       float64
	}{
		{
			"whole lot",
			common.Contract{Symbol: "BTCUSDT", QuoteAsset: "USDT", LotSize: 0.001},
			20000, 10,
			0.005,
		},
		{
			"quantity snaps to lot size",
			common.Contract{Symbol: "BNBUSDT", QuoteAsset: "USDT", LotSize: 0.01},
			300, 10,
			0.33,
		},
		{
			"full balance",
			common.Contract{Symbol: "BTCUSDT", QuoteAsset: "USDT", LotSize: 0.001},
			50000, 100,
			0.02,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, _ := newTestConnector(t, account)
			got, err := conn.TradeSize(context.Background(), tt.contract, tt.price, tt.balancePct)
			if err != nil {
				t.Fatalf("TradeSize: %v", err)
			}
			if got != tt.want {
				t.Errorf("TradeSize = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTradeSizeMissingQuoteAsset(t *testing.T) {
	conn, _ := newTestConnector(t, `{"assets":[{"asset":"USDT","walletBalance":"1000"}]}`)
	contract := common.Contract{Symbol: "BTCBUSD", QuoteAsset: "BUSD", LotSize: 0.001}
	if _, err := conn.TradeSize(context.Background(), contract, 20000, 10); err == nil {
		t.Error("expected error for an asset the account does not hold")
	}
}

func TestTradeSizeInvalidPrice(t *testing.T) {
	conn, hits := newTestConnector(t, `{"assets":[]}`)
	contract := common.Contract{Symbol: "BTCUSDT", QuoteAsset: "USDT", LotSize: 0.001}
	if _, err := conn.TradeSize(context.Background(), contract, 0, 10); err == nil {
		t.Error("expected error for zero price")
	}
	if hits.Load() != 0 {
		t.Errorf("account endpoint hit %d times before price validation", hits.Load())
	}
}
