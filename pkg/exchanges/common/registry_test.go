package common

import "testing"

type noopHandler struct {
	id     string
	symbol string
}

func (h *noopHandler) ID() string        { return h.id }
func (h *noopHandler) Symbol() string    { return h.symbol }
func (h *noopHandler) OnTrade(TradeTick) {}
func (h *noopHandler) OnQuote(Quote)     {}

func TestHandlerRegistry(t *testing.T) {
	r := NewHandlerRegistry()
	r.Add(&noopHandler{id: "a", symbol: "BTCUSDT"})
	r.Add(&noopHandler{id: "b", symbol: "ETHUSDT"})
	r.Add(&noopHandler{id: "c", symbol: "BTCUSDT"})

	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}

	if h, ok := r.Get("b"); !ok || h.Symbol() != "ETHUSDT" {
		t.Errorf("Get(b) = %v, %v", h, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) reported ok")
	}

	if got := len(r.ForSymbol("BTCUSDT")); got != 2 {
		t.Errorf("ForSymbol(BTCUSDT) len = %d, want 2", got)
	}
	if got := len(r.Snapshot()); got != 3 {
		t.Errorf("Snapshot len = %d, want 3", got)
	}

	r.Remove("a")
	if r.Len() != 2 {
		t.Errorf("Len after Remove = %d, want 2", r.Len())
	}
	if got := len(r.ForSymbol("BTCUSDT")); got != 1 {
		t.Errorf("ForSymbol after Remove len = %d, want 1", got)
	}

	// Re-adding the same id replaces the entry.
	r.Add(&noopHandler{id: "b", symbol: "XRPUSDT"})
	if r.Len() != 2 {
		t.Errorf("Len after replace = %d, want 2", r.Len())
	}
	if h, _ := r.Get("b"); h.Symbol() != "XRPUSDT" {
		t.Errorf("replaced handler symbol = %s, want XRPUSDT", h.Symbol())
	}
}
