package strategy

import (
	"fmt"

	"tradeking/pkg/exchanges/common"
)

// TickType classifies how a trade tick related to the current candle bucket.
type TickType string

const (
	TickSameCandle TickType = "same_candle"
	TickNewCandle  TickType = "new_candle"
)

// series is the per-instance candle aggregation state machine. It turns the
// trade tick stream into an ordered, gap-free sequence of fixed-interval
// candles: consecutive bucket timestamps always differ by exactly one
// timeframe width, with skipped buckets filled by synthetic flat candles.
// Only the last candle is ever mutated; prior candles are frozen.
type series struct {
	timeframe string
	width     int64 // bucket width, ms
	candles   []common.Candle
}

func newSeries(timeframe string, seed []common.Candle) (*series, error) {
	width, err := common.TimeframeMs(timeframe)
	if err != nil {
		return nil, err
	}
	s := &series{timeframe: timeframe, width: width}
	s.candles = append(s.candles, seed...)
	return s, nil
}

// apply folds one trade tick into the sequence and classifies it. The second
// return value is the number of synthetic candles inserted to fill skipped
// buckets.
func (s *series) apply(price, size float64, timestamp int64) (TickType, int) {
	if len(s.candles) == 0 {
		s.candles = append(s.candles, common.Candle{
			Timestamp: timestamp - timestamp%s.width,
			Open:      price, High: price, Low: price, Close: price,
			Volume:    size,
			Timeframe: s.timeframe,
		})
		return TickNewCandle, 0
	}

	last := &s.candles[len(s.candles)-1]

	// Same bucket: mutate the in-progress candle.
	if timestamp < last.Timestamp+s.width {
		last.Close = price
		last.Volume += size
		if price > last.High {
			last.High = price
		} else if price < last.Low {
			last.Low = price
		}
		return TickSameCandle, 0
	}

	// Skipped buckets: insert flat candles carrying the previous close so
	// the no-gap invariant holds.
	missing := 0
	if timestamp >= last.Timestamp+2*s.width {
		missing = int((timestamp-last.Timestamp)/s.width) - 1
		for m := 0; m < missing; m++ {
			prev := s.candles[len(s.candles)-1]
			s.candles = append(s.candles, common.Candle{
				Timestamp: prev.Timestamp + s.width,
				Open:      prev.Close, High: prev.Close, Low: prev.Close, Close: prev.Close,
				Volume:    0,
				Timeframe: s.timeframe,
			})
		}
	}

	prev := s.candles[len(s.candles)-1]
	s.candles = append(s.candles, common.Candle{
		Timestamp: prev.Timestamp + s.width,
		Open:      price, High: price, Low: price, Close: price,
		Volume:    size,
		Timeframe: s.timeframe,
	})
	return TickNewCandle, missing
}

// lastClose returns the close of the in-progress candle.
func (s *series) lastClose() float64 {
	if len(s.candles) == 0 {
		return 0
	}
	return s.candles[len(s.candles)-1].Close
}

// snapshot returns a copy of the candle sequence.
func (s *series) snapshot() []common.Candle {
	out := make([]common.Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

func (s *series) String() string {
	return fmt.Sprintf("series(%s, %d candles)", s.timeframe, len(s.candles))
}
