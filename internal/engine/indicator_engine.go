package engine

import (
	"spot-trading-bot/internal/ta"
	"spot-trading-bot/internal/types"
)

// readySamples is the history length before any indicator snapshot is produced.
const readySamples = 20

// indicatorSeries keeps the two newest snapshots of an asset.
type indicatorSeries struct {
	cur, prev types.Indicators
	count     int
}

func (s *indicatorSeries) push(ind types.Indicators) {
	s.prev = s.cur
	s.cur = ind
	s.count++
}

// previous falls back to the current snapshot until two exist.
func (s *indicatorSeries) previous() types.Indicators {
	if s.count < 2 {
		return s.cur
	}
	return s.prev
}

type indicatorEngine struct {
	shortWindow int
	longWindow  int
	rsiPeriod   int
}

func newIndicatorEngine(shortWindow, longWindow, rsiPeriod int) *indicatorEngine {
	return &indicatorEngine{shortWindow: shortWindow, longWindow: longWindow, rsiPeriod: rsiPeriod}
}

// window is the number of trailing samples compute reads.
func (ie *indicatorEngine) window() int {
	n := ie.longWindow
	if ie.shortWindow > n {
		n = ie.shortWindow
	}
	if ie.rsiPeriod+1 > n {
		n = ie.rsiPeriod + 1
	}
	return n
}

// compute returns the snapshot for h, or false while h is shorter than readySamples.
func (ie *indicatorEngine) compute(h *priceHistory) (types.Indicators, bool) {
	if h.Len() < readySamples {
		return types.Indicators{}, false
	}
	prices := h.lastPrices(ie.window())
	return types.Indicators{
		ShortMA: ta.SMA(prices, ie.shortWindow),
		LongMA:  ta.SMA(prices, ie.longWindow),
		RSI:     ta.RSI(prices, ie.rsiPeriod),
	}, true
}
