package cache

import (
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// QuoteCache is a sharded per-instrument best bid/ask cache. The venue
// websocket goroutine writes it on every book update; API readers take
// copies, never references into the shards.
type QuoteCache struct {
	shards [numShards]*quoteShard
}

type quoteShard struct {
	mu    sync.RWMutex
	items map[string]quoteEntry
}

type quoteEntry struct {
	bid       float64
	ask       float64
	updatedAt time.Time
}

// NewQuoteCache creates an empty cache.
func NewQuoteCache() *QuoteCache {
	c := &QuoteCache{}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &quoteShard{items: make(map[string]quoteEntry)}
	}
	return c
}

func (c *QuoteCache) getShard(key string) *quoteShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

// Set stores both sides for a symbol.
func (c *QuoteCache) Set(symbol string, bid, ask float64) {
	shard := c.getShard(symbol)
	shard.mu.Lock()
	shard.items[symbol] = quoteEntry{bid: bid, ask: ask, updatedAt: time.Now()}
	shard.mu.Unlock()
}

// SetBid updates only the bid side, preserving the last known ask. BitMEX
// instrument updates carry the sides independently.
func (c *QuoteCache) SetBid(symbol string, bid float64) {
	shard := c.getShard(symbol)
	shard.mu.Lock()
	e := shard.items[symbol]
	e.bid = bid
	e.updatedAt = time.Now()
	shard.items[symbol] = e
	shard.mu.Unlock()
}

// SetAsk updates only the ask side, preserving the last known bid.
func (c *QuoteCache) SetAsk(symbol string, ask float64) {
	shard := c.getShard(symbol)
	shard.mu.Lock()
	e := shard.items[symbol]
	e.ask = ask
	e.updatedAt = time.Now()
	shard.items[symbol] = e
	shard.mu.Unlock()
}

// Get returns the latest bid/ask for a symbol.
func (c *QuoteCache) Get(symbol string) (bid, ask float64, ok bool) {
	shard := c.getShard(symbol)
	shard.mu.RLock()
	e, ok := shard.items[symbol]
	shard.mu.RUnlock()
	return e.bid, e.ask, ok
}

// Len returns total cached instruments across all shards.
func (c *QuoteCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.items)
		shard.mu.RUnlock()
	}
	return total
}

// Snapshot returns a copy of all cached quotes keyed by symbol.
func (c *QuoteCache) Snapshot() map[string][2]float64 {
	out := make(map[string][2]float64)
	for _, shard := range c.shards {
		shard.mu.RLock()
		for sym, e := range shard.items {
			out[sym] = [2]float64{e.bid, e.ask}
		}
		shard.mu.RUnlock()
	}
	return out
}

// Cleanup removes entries older than maxAge and reports how many were
// dropped.
func (c *QuoteCache) Cleanup(maxAge time.Duration) int {
	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for _, shard := range c.shards {
		shard.mu.Lock()
		for sym, e := range shard.items {
			if e.updatedAt.Before(cutoff) {
				delete(shard.items, sym)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}
