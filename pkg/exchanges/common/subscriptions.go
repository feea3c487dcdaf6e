package common

import (
	"sort"
	"sync"
)

// SubscriptionSet tracks which (channel, instrument) pairs a venue session
// has subscribed. Re-adding a tracked pair is a no-op unless forced, which
// keeps subscribe calls idempotent across reconnects.
type SubscriptionSet struct {
	mu      sync.Mutex
	tracked map[string]map[string]bool // channel -> symbol set
}

// NewSubscriptionSet creates an empty subscription tracker.
func NewSubscriptionSet() *SubscriptionSet {
	return &SubscriptionSet{tracked: make(map[string]map[string]bool)}
}

// Filter returns the symbols that should actually be sent for the channel:
// untracked symbols, or every given symbol when force is set (after a
// reconnect). New symbols are recorded as tracked.
func (s *SubscriptionSet) Filter(channel string, symbols []string, force bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.tracked[channel]
	if !ok {
		set = make(map[string]bool)
		s.tracked[channel] = set
	}

	var out []string
	for _, sym := range symbols {
		if !set[sym] || force {
			out = append(out, sym)
		}
		set[sym] = true
	}
	return out
}

// Tracked returns a sorted copy of the symbols tracked for a channel.
func (s *SubscriptionSet) Tracked(channel string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for sym := range s.tracked[channel] {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Count returns how many instruments are tracked for a channel.
func (s *SubscriptionSet) Count(channel string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracked[channel])
}
