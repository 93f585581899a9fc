package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spot-trading-bot/internal/store"
	"spot-trading-bot/internal/types"
)

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func historyOf(capacity int, prices ...float64) *priceHistory {
	h := newPriceHistory(capacity)
	for _, p := range prices {
		h.append(p, p)
	}
	return h
}

func TestPriceHistoryRing(t *testing.T) {
	h := historyOf(3, 1, 2, 3, 4, 5)

	assert.Equal(t, 5, h.Len())
	assert.Equal(t, []float64{3, 4, 5}, h.lastPrices(10))
	assert.Equal(t, []float64{4, 5}, h.lastPrices(2))

	last, ok := h.latest()
	require.True(t, ok)
	assert.Equal(t, 5.0, last.LastPrice)

	_, ok = newPriceHistory(3).latest()
	assert.False(t, ok)
}

func TestPriceHistoryChangePct(t *testing.T) {
	h := newPriceHistory(2)
	h.append(110, 100)
	s, _ := h.latest()
	assert.InDelta(t, 10.0, s.ChangePct, 1e-9)
}

func TestIndicatorEngineNeedsTwentySamples(t *testing.T) {
	ie := newIndicatorEngine(10, 20, 14)

	_, ok := ie.compute(historyOf(20, flat(19, 10)...))
	assert.False(t, ok)

	ind, ok := ie.compute(historyOf(20, flat(20, 10)...))
	require.True(t, ok)
	assert.Equal(t, 10.0, ind.ShortMA)
	assert.Equal(t, 10.0, ind.LongMA)
	assert.Equal(t, 50.0, ind.RSI)
}

func TestIndicatorEngineShortMAUsesLastTen(t *testing.T) {
	ie := newIndicatorEngine(10, 20, 14)
	prices := append(flat(10, 1), flat(10, 3)...)

	ind, ok := ie.compute(historyOf(20, prices...))
	require.True(t, ok)
	assert.Equal(t, 3.0, ind.ShortMA)
	assert.Equal(t, 2.0, ind.LongMA)
	assert.Equal(t, 100.0, ind.RSI)
}

func TestIndicatorSeriesPrevious(t *testing.T) {
	var s indicatorSeries
	s.push(types.Indicators{ShortMA: 1})
	assert.Equal(t, 1.0, s.previous().ShortMA)

	s.push(types.Indicators{ShortMA: 2})
	assert.Equal(t, 1.0, s.previous().ShortMA)
	assert.Equal(t, 2.0, s.cur.ShortMA)
}

func TestSignalFusionThresholds(t *testing.T) {
	golden := fusionInput{
		prev: types.Indicators{ShortMA: 10, LongMA: 10, RSI: 50},
		cur:  types.Indicators{ShortMA: 11, LongMA: 10, RSI: 50},
	}
	death := fusionInput{
		prev: types.Indicators{ShortMA: 10, LongMA: 10, RSI: 50},
		cur:  types.Indicators{ShortMA: 9, LongMA: 10, RSI: 50},
	}
	up := append(flat(19, 10), 12)
	down := append(flat(19, 10), 8)

	tests := []struct {
		name        string
		in          fusionInput
		rsi         float64
		window      []float64
		hasPosition bool
		wantTotal   int
		wantAction  string
	}{
		{"score 3 without position buys", golden, 20, up, false, 3, ActionBuy},
		{"score 2 without position buys", golden, 50, up, false, 2, ActionBuy},
		{"score 2 with position holds", golden, 50, up, true, 2, ActionNone},
		{"score 1 holds", golden, 50, flat(20, 10), false, 1, ActionNone},
		{"score -2 with position sells", death, 50, down, true, -2, ActionSell},
		{"score -3 with position sells", death, 80, down, true, -3, ActionSell},
		{"score -3 without position holds", death, 80, down, false, -3, ActionNone},
		{"score -1 with position holds", death, 50, flat(20, 10), true, -1, ActionNone},
	}

	sf := newSignalFusion(false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			in.cur.RSI = tt.rsi
			in.window = tt.window
			sig := sf.evaluate("BTC/USD", in, tt.hasPosition)
			assert.Equal(t, tt.wantTotal, sig.Total)
			assert.Equal(t, tt.wantAction, sig.Action)
		})
	}
}

func TestBreakoutScenario(t *testing.T) {
	in := fusionInput{
		prev:   types.Indicators{ShortMA: 10, LongMA: 10, RSI: 50},
		cur:    types.Indicators{ShortMA: 10.2, LongMA: 10.1, RSI: 25},
		window: append(flat(19, 10), 12),
		price:  12,
	}
	sig := newSignalFusion(false).evaluate("X", in, false)

	assert.Equal(t, 1, sig.Breakout)
	assert.Equal(t, 1, sig.MACross)
	assert.Equal(t, 1, sig.RSIExtreme)
	assert.Equal(t, 3, sig.Total)
	assert.Equal(t, ActionBuy, sig.Action)
	assert.Equal(t, 12.0, sig.Price)
}

func TestBreakoutNeedsFullWindow(t *testing.T) {
	assert.Equal(t, 0, breakoutVote(fusionInput{window: append(flat(18, 10), 12)}))
	assert.Equal(t, 1, breakoutVote(fusionInput{window: append(flat(19, 10), 12)}))
	assert.Equal(t, -1, breakoutVote(fusionInput{window: append(flat(19, 10), 8)}))
	assert.Equal(t, 0, breakoutVote(fusionInput{window: append(append(flat(18, 10), 12), 12)}))
}

func TestLegacyRSIGateMutesRSI(t *testing.T) {
	in := fusionInput{
		prev: types.Indicators{ShortMA: 10, LongMA: 10},
		cur:  types.Indicators{ShortMA: 11, LongMA: 10, RSI: 10},
	}

	live := newSignalFusion(false).evaluate("X", in, false)
	assert.Equal(t, 1, live.RSIExtreme)
	assert.Equal(t, ActionBuy, live.Action)

	legacy := newSignalFusion(true).evaluate("X", in, false)
	assert.Equal(t, 0, legacy.RSIExtreme)
	assert.Equal(t, ActionNone, legacy.Action)
}

func TestRiskManagerBoundaries(t *testing.T) {
	rm := newRiskManager(0.02, 0.03)
	ctx := context.Background()

	tests := []struct {
		price  float64
		reason string
	}{
		{98, ReasonStopLoss},
		{97, ReasonStopLoss},
		{103, ReasonTakeProfit},
		{110, ReasonTakeProfit},
		{98.01, ""},
		{102.99, ""},
		{100, ""},
	}
	for _, tt := range tests {
		positions := []types.Position{{Asset: "BTC/USD", Quantity: 1, EntryPrice: 100}}
		got := rm.evaluate(ctx, positions, func(string) (float64, bool) { return tt.price, true })
		if tt.reason == "" {
			assert.Empty(t, got, "price %v", tt.price)
			continue
		}
		require.Len(t, got, 1, "price %v", tt.price)
		assert.Equal(t, tt.reason, got[0].Reason)
	}
}

func TestRiskManagerSkipsUnpricedAndZeroEntry(t *testing.T) {
	rm := newRiskManager(0.02, 0.03)
	positions := []types.Position{
		{Asset: "A", EntryPrice: 0, Quantity: 1},
		{Asset: "B", EntryPrice: 100, Quantity: 1},
	}
	got := rm.evaluate(context.Background(), positions, func(asset string) (float64, bool) {
		if asset == "B" {
			return 0, false
		}
		return 1, true
	})
	assert.Empty(t, got)
}

func TestMergeSells(t *testing.T) {
	got := mergeSells([]string{"A", "B"}, []types.RiskTrigger{{Asset: "B"}, {Asset: "C"}, {Asset: "C"}})
	assert.Equal(t, []string{"A", "B", "C"}, got)
}

func TestOrderSizer(t *testing.T) {
	cfg := store.Default()
	sz := newOrderSizer(cfg.Sizing.Budget, cfg.Risk.MaxExposure, cfg.Sizing.MinOrder, cfg.Sizing.IntegerOnlyBases)

	assert.Equal(t, 4.0, sz.quantity("XRP/USD", 0.5, 0))
	assert.Equal(t, 1.0, sz.quantity("XRP/USD", 5, 0))
	assert.Equal(t, 20.0, sz.quantity("TRX/USD", 0.1, 0))
	assert.Equal(t, 10.0, sz.quantity("TRX/USD", 1, 0))
	assert.Equal(t, 0.00004, sz.quantity("BTC/USD", 50000, 0))
	assert.Equal(t, 0.666667, sz.quantity("SOL/USD", 3, 0))
	assert.Equal(t, 0.0, sz.quantity("BTC/USD", 0, 0))

	small := newOrderSizer(0.5, cfg.Risk.MaxExposure, cfg.Sizing.MinOrder, cfg.Sizing.IntegerOnlyBases)
	assert.Equal(t, 0.00002, small.quantity("BTC/USD", 50000, 0))
}

func TestOrderSizerExposureGate(t *testing.T) {
	cfg := store.Default()
	sz := newOrderSizer(cfg.Sizing.Budget, 10, cfg.Sizing.MinOrder, cfg.Sizing.IntegerOnlyBases)

	for _, asset := range []string{"XRP/USD", "BTC/USD", "SOL/USD"} {
		for _, price := range []float64{0.01, 1, 50000} {
			assert.Zero(t, sz.quantity(asset, price, 10), "%s @ %v", asset, price)
			assert.Zero(t, sz.quantity(asset, price, 12.5), "%s @ %v", asset, price)
		}
	}
	assert.NotZero(t, sz.quantity("BTC/USD", 50000, 9.99))
}

func TestPositionManager(t *testing.T) {
	ctx := context.Background()
	pm := newPositionManager()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, pm.open(ctx, "BTC/USD", 0.001, 20000, ts, "1"))
	require.NoError(t, pm.open(ctx, "XRP/USD", 4, 0.5, ts, "2"))

	err := pm.open(ctx, "BTC/USD", 1, 1, ts, "3")
	require.ErrorIs(t, err, ErrPositionExists)
	p, _ := pm.get("BTC/USD")
	assert.Equal(t, "1", p.OrderID)

	prices := map[string]float64{"BTC/USD": 21000}
	exposure := pm.totalExposure(func(a string) (float64, bool) {
		v, ok := prices[a]
		return v, ok
	})
	assert.InDelta(t, 21.0, exposure, 1e-9)

	closed, pnl, err := pm.close(ctx, "BTC/USD", 21000)
	require.NoError(t, err)
	assert.Equal(t, "BTC/USD", closed.Asset)
	assert.InDelta(t, 1.0, pnl, 1e-9)
	assert.False(t, pm.has("BTC/USD"))

	_, _, err = pm.close(ctx, "BTC/USD", 1)
	require.ErrorIs(t, err, ErrNoPosition)

	realized, n := pm.realized()
	assert.InDelta(t, 1.0, realized, 1e-9)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, pm.count())
	assert.Equal(t, "XRP/USD", pm.snapshot()[0].Asset)
}
