package bitmex

import (
	"testing"

	"tradeking/pkg/exchanges/common"
)

func TestSign(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{
			"get without query",
			"GET/api/v1/instrument/active1700000005",
			"67a820a93634714ea02efcc02b006c6c60545a6a7c79c274ded4255eb41c0986",
		},
		{
			"get with query",
			"GET/api/v1/order?reverse=true&symbol=XBTUSD1700000005",
			"892ce90bb838578300c98bbcd42f3e0d61b38a5f56148db1542c970b94222136",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sign(tt.data, "test-secret"); got != tt.want {
				t.Errorf("sign = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecimalsFromStep(t *testing.T) {
	tests := []struct {
		step float64
		want int
	}{
		{1, 0},
		{0.5, 1},
		{0.01, 2},
		{0.00001, 5},
		{100, 0},
	}
	for _, tt := range tests {
		if got := decimalsFromStep(tt.step); got != tt.want {
			t.Errorf("decimalsFromStep(%v) = %d, want %d", tt.step, got, tt.want)
		}
	}
}

func TestMapState(t *testing.T) {
	tests := []struct {
		venue string
		want  common.OrderState
	}{
		{"New", common.StateNew},
		{"PartiallyFilled", common.StatePartial},
		{"Filled", common.StateFilled},
		{"Canceled", common.StateCanceled},
		{"Rejected", common.StateRejected},
		{"Untriggered", common.StateUnknown},
	}
	for _, tt := range tests {
		if got := mapState(tt.venue); got != tt.want {
			t.Errorf("mapState(%s) = %s, want %s", tt.venue, got, tt.want)
		}
	}
}

func TestVenueEncodings(t *testing.T) {
	if got := sideToVenue(common.SideLong); got != "Buy" {
		t.Errorf("sideToVenue(long) = %s, want Buy", got)
	}
	if got := sideToVenue(common.SideShort); got != "Sell" {
		t.Errorf("sideToVenue(short) = %s, want Sell", got)
	}
	if got := typeToVenue(common.OrderTypeMarket); got != "Market" {
		t.Errorf("typeToVenue(market) = %s, want Market", got)
	}
	if got := typeToVenue(common.OrderTypeLimit); got != "Limit" {
		t.Errorf("typeToVenue(limit) = %s, want Limit", got)
	}
}

func TestOrderRespToStatus(t *testing.T) {
	resp := orderResp{
		OrderID:   "9d2af0a0-aaaa-bbbb-cccc-6a23cfd629a1",
		OrdStatus: "PartiallyFilled",
		AvgPx:     42310.5,
		CumQty:    150,
	}
	status := resp.toStatus()
	if status.OrderID != resp.OrderID {
		t.Errorf("OrderID = %s", status.OrderID)
	}
	if status.Status != common.StatePartial {
		t.Errorf("Status = %s, want partially_filled", status.Status)
	}
	if status.AvgPrice != 42310.5 || status.ExecutedQty != 150 {
		t.Errorf("AvgPrice = %v, ExecutedQty = %v", status.AvgPrice, status.ExecutedQty)
	}
}
