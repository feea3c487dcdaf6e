package order

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"tradeking/pkg/exchanges/common"
)

func fastConfig(attempts int) Config {
	return Config{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxAttempts:     attempts,
	}
}

func TestWatchReportsFill(t *testing.T) {
	var polls atomic.Int32
	filledCh := make(chan common.OrderStatus, 1)

	fetch := func(ctx context.Context) (common.OrderStatus, error) {
		if polls.Add(1) < 3 {
			return common.OrderStatus{OrderID: "o1", Status: common.StateNew}, nil
		}
		return common.OrderStatus{OrderID: "o1", Status: common.StateFilled, AvgPrice: 101}, nil
	}

	Watch(context.Background(), "o1", fastConfig(10), fetch,
		func(status common.OrderStatus) { filledCh <- status },
		func(attempts int) { t.Error("unexpected abandon") })

	select {
	case status := <-filledCh:
		if status.AvgPrice != 101 {
			t.Errorf("AvgPrice = %v, want 101", status.AvgPrice)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fill")
	}
	if got := polls.Load(); got != 3 {
		t.Errorf("polls = %d, want 3", got)
	}
}

func TestWatchAbandonsAfterBudget(t *testing.T) {
	var polls atomic.Int32
	abandonedCh := make(chan int, 1)

	fetch := func(ctx context.Context) (common.OrderStatus, error) {
		polls.Add(1)
		return common.OrderStatus{OrderID: "o1", Status: common.StateNew}, nil
	}

	Watch(context.Background(), "o1", fastConfig(4), fetch,
		func(common.OrderStatus) { t.Error("unexpected fill") },
		func(attempts int) { abandonedCh <- attempts })

	select {
	case attempts := <-abandonedCh:
		if attempts != 4 {
			t.Errorf("attempts = %d, want 4", attempts)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for abandon")
	}
	if got := polls.Load(); got != 4 {
		t.Errorf("polls = %d, want 4", got)
	}
}

func TestWatchKeepsPollingThroughErrors(t *testing.T) {
	var polls atomic.Int32
	filledCh := make(chan common.OrderStatus, 1)

	fetch := func(ctx context.Context) (common.OrderStatus, error) {
		if polls.Add(1) == 1 {
			return common.OrderStatus{}, errors.New("transport down")
		}
		return common.OrderStatus{OrderID: "o1", Status: common.StateFilled}, nil
	}

	Watch(context.Background(), "o1", fastConfig(10), fetch,
		func(status common.OrderStatus) { filledCh <- status },
		nil)

	select {
	case <-filledCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fill after error")
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	polled := make(chan struct{}, 16)
	fetch := func(ctx context.Context) (common.OrderStatus, error) {
		polled <- struct{}{}
		return common.OrderStatus{Status: common.StateNew}, nil
	}

	cfg := Config{InitialInterval: time.Hour, MaxInterval: time.Hour, MaxAttempts: 5}
	Watch(ctx, "o1", cfg, fetch,
		func(common.OrderStatus) { t.Error("unexpected fill") },
		func(int) { t.Error("unexpected abandon") })

	select {
	case <-polled:
		t.Fatal("poll ran after cancellation")
	case <-time.After(50 * time.Millisecond):
	}
}
