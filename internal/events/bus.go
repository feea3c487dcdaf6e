// Package events carries in-process push notifications from strategy
// instances to the API websocket.
package events

import (
	"sync"
)

// Bus is a lightweight typed broadcast fan-out over channels.
type Bus[T any] struct {
	mu   sync.RWMutex
	subs []chan T
}

// NewBus creates an empty bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers a listener and returns its channel and an unsubscribe
// function.
func (b *Bus[T]) Subscribe(buffer int) (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, buffer)
	b.subs = append(b.subs, ch)

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, c := range b.subs {
			if c == ch {
				close(c)
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
	}

	return ch, unsub
}

// Publish fan-outs the payload to subscribers without blocking; slow
// subscribers drop messages rather than stalling the websocket goroutine.
func (b *Bus[T]) Publish(payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- payload:
		default:
		}
	}
}
