package common

import "sync"

// HandlerRegistry is the shared registry of active strategy instances for a
// venue. The websocket goroutine writes ticks through it while API calls
// register and unregister instances, so all iteration happens over a copied
// snapshot rather than the live map.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]TickHandler
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]TickHandler)}
}

// Add registers a handler under its id, replacing any previous entry.
func (r *HandlerRegistry) Add(h TickHandler) {
	r.mu.Lock()
	r.handlers[h.ID()] = h
	r.mu.Unlock()
}

// Remove drops the handler with the given id.
func (r *HandlerRegistry) Remove(id string) {
	r.mu.Lock()
	delete(r.handlers, id)
	r.mu.Unlock()
}

// Get returns the handler with the given id.
func (r *HandlerRegistry) Get(id string) (TickHandler, bool) {
	r.mu.RLock()
	h, ok := r.handlers[id]
	r.mu.RUnlock()
	return h, ok
}

// Snapshot returns a copy of all registered handlers.
func (r *HandlerRegistry) Snapshot() []TickHandler {
	r.mu.RLock()
	out := make([]TickHandler, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h)
	}
	r.mu.RUnlock()
	return out
}

// ForSymbol returns a copy of the handlers registered for one instrument.
func (r *HandlerRegistry) ForSymbol(symbol string) []TickHandler {
	r.mu.RLock()
	var out []TickHandler
	for _, h := range r.handlers {
		if h.Symbol() == symbol {
			out = append(out, h)
		}
	}
	r.mu.RUnlock()
	return out
}

// Len returns the number of registered handlers.
func (r *HandlerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
