// Package order schedules fill polling for orders the venue did not fill
// immediately.
package order

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"tradeking/pkg/exchanges/common"
)

// Config bounds a fill-polling task. Polling is capped: once MaxAttempts
// status fetches have run without a fill, the task ends with a terminal
// abandoned outcome instead of recurring forever.
type Config struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxAttempts     int
}

// DefaultConfig polls every 2s, backing off exponentially to 30s, for at
// most 20 attempts.
func DefaultConfig() Config {
	return Config{
		InitialInterval: 2 * time.Second,
		MaxInterval:     30 * time.Second,
		MaxAttempts:     20,
	}
}

// StatusFunc fetches the current status of the watched order.
type StatusFunc func(ctx context.Context) (common.OrderStatus, error)

// Watch polls an order until it reports filled, the attempt budget is
// exhausted, or ctx is cancelled. It runs in its own goroutine and returns
// immediately. onFilled is invoked at most once with the filled status;
// onAbandoned is invoked when the budget runs out without a fill.
func Watch(ctx context.Context, orderID string, cfg Config, fetch StatusFunc, onFilled func(common.OrderStatus), onAbandoned func(attempts int)) {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = DefaultConfig().InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = DefaultConfig().MaxInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}

	go func() {
		interval := cfg.InitialInterval
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			status, err := fetch(ctx)
			if err != nil {
				logrus.Warnf("order %s status poll failed (attempt %d/%d): %v", orderID, attempt, cfg.MaxAttempts, err)
			} else if status.Status == common.StateFilled {
				onFilled(status)
				return
			} else {
				logrus.Debugf("order %s status: %s (attempt %d/%d)", orderID, status.Status, attempt, cfg.MaxAttempts)
			}

			interval *= 2
			if interval > cfg.MaxInterval {
				interval = cfg.MaxInterval
			}
			timer.Reset(interval)
		}

		if onAbandoned != nil {
			onAbandoned(cfg.MaxAttempts)
		}
	}()
}
