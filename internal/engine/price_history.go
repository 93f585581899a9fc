package engine

import (
	"spot-trading-bot/internal/ta"
	"spot-trading-bot/internal/types"
)

// priceHistory is a fixed-capacity ring of samples for one asset. The slot
// for sample i is i modulo capacity; only the newest capacity samples survive.
type priceHistory struct {
	buf   []types.Sample
	count int
}

func newPriceHistory(capacity int) *priceHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &priceHistory{buf: make([]types.Sample, capacity)}
}

func (h *priceHistory) append(last, ref float64) {
	h.buf[h.count%len(h.buf)] = types.Sample{
		LastPrice:      last,
		ReferencePrice: ref,
		ChangePct:      ta.ChangePct(last, ref),
	}
	h.count++
}

// Len is the total number of samples ever appended.
func (h *priceHistory) Len() int {
	return h.count
}

func (h *priceHistory) latest() (types.Sample, bool) {
	if h.count == 0 {
		return types.Sample{}, false
	}
	return h.buf[(h.count-1)%len(h.buf)], true
}

// lastPrices returns up to n of the newest last prices, oldest first.
func (h *priceHistory) lastPrices(n int) []float64 {
	if n > h.count {
		n = h.count
	}
	if n > len(h.buf) {
		n = len(h.buf)
	}
	out := make([]float64, n)
	start := h.count - n
	for i := 0; i < n; i++ {
		out[i] = h.buf[(start+i)%len(h.buf)].LastPrice
	}
	return out
}
