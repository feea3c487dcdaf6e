package cache

import (
	"testing"
	"time"
)

func TestQuoteCacheSetGet(t *testing.T) {
	c := NewQuoteCache()

	if _, _, ok := c.Get("BTCUSDT"); ok {
		t.Fatal("Get on empty cache reported ok")
	}

	c.Set("BTCUSDT", 42000.5, 42001)
	bid, ask, ok := c.Get("BTCUSDT")
	if !ok || bid != 42000.5 || ask != 42001 {
		t.Errorf("Get = %v, %v, %v", bid, ask, ok)
	}
}

func TestQuoteCachePartialSides(t *testing.T) {
	c := NewQuoteCache()

	c.SetBid("XBTUSD", 42000)
	bid, ask, ok := c.Get("XBTUSD")
	if !ok || bid != 42000 || ask != 0 {
		t.Fatalf("after SetBid: %v, %v, %v", bid, ask, ok)
	}

	// The other side updates independently, preserving the bid.
	c.SetAsk("XBTUSD", 42001)
	bid, ask, _ = c.Get("XBTUSD")
	if bid != 42000 || ask != 42001 {
		t.Errorf("after SetAsk: %v, %v", bid, ask)
	}
}

func TestQuoteCacheSnapshot(t *testing.T) {
	c := NewQuoteCache()
	c.Set("BTCUSDT", 1, 2)
	c.Set("ETHUSDT", 3, 4)

	snap := c.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot len = %d, want 2", len(snap))
	}
	if snap["BTCUSDT"] != [2]float64{1, 2} {
		t.Errorf("snapshot BTCUSDT = %v", snap["BTCUSDT"])
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestQuoteCacheCleanup(t *testing.T) {
	c := NewQuoteCache()
	c.Set("BTCUSDT", 1, 2)
	c.Set("ETHUSDT", 3, 4)

	if removed := c.Cleanup(time.Minute); removed != 0 {
		t.Errorf("Cleanup(1m) removed %d, want 0", removed)
	}

	time.Sleep(5 * time.Millisecond)
	if removed := c.Cleanup(time.Millisecond); removed != 2 {
		t.Errorf("Cleanup(1ms) removed %d, want 2", removed)
	}
	if c.Len() != 0 {
		t.Errorf("Len after cleanup = %d, want 0", c.Len())
	}
}
