package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/store"
	"spot-trading-bot/internal/tradelog"
	"spot-trading-bot/internal/types"
)

type fakeTick struct {
	prices map[string]float64
	err    error
}

// fakeBroker replays one tick per fetch, repeating the last one, and fills
// orders at the most recently fetched price.
type fakeBroker struct {
	ticks     []fakeTick
	n         int
	last      map[string]float64
	orderErr  error
	zeroFills bool
	orders    []types.OrderReq
}

func (fb *fakeBroker) FetchSnapshot(ctx context.Context) (types.MarketSnapshot, error) {
	i := fb.n
	if i >= len(fb.ticks) {
		i = len(fb.ticks) - 1
	}
	fb.n++
	tk := fb.ticks[i]
	if tk.err != nil {
		return types.MarketSnapshot{}, tk.err
	}
	snap := types.MarketSnapshot{Quotes: map[string]types.Quote{}, FetchedAt: time.Now()}
	for asset, p := range tk.prices {
		snap.Quotes[asset] = types.Quote{LastPrice: p, ReferencePrice: p}
	}
	fb.last = tk.prices
	return snap, nil
}

func (fb *fakeBroker) PlaceOrder(ctx context.Context, req types.OrderReq) (types.Fill, error) {
	fb.orders = append(fb.orders, req)
	if fb.orderErr != nil {
		return types.Fill{}, fb.orderErr
	}
	price := fb.last[req.Asset]
	if fb.zeroFills {
		price = 0
	}
	return types.Fill{
		OrderID:     fmt.Sprintf("T-%d", len(fb.orders)),
		FilledPrice: price,
		Status:      "FILLED",
	}, nil
}

// sliding returns 20 ticks of BTC/USD falling from 12.0 by 0.1, followed by extra.
func sliding(extra ...float64) []fakeTick {
	var ticks []fakeTick
	for i := 0; i < 20; i++ {
		ticks = append(ticks, fakeTick{prices: map[string]float64{"BTC/USD": 12.0 - 0.1*float64(i)}})
	}
	for _, p := range extra {
		ticks = append(ticks, fakeTick{prices: map[string]float64{"BTC/USD": p}})
	}
	return ticks
}

// rising returns 20 ticks of BTC/USD climbing from 10.0 by 0.1, followed by extra.
func rising(extra ...float64) []fakeTick {
	var ticks []fakeTick
	for i := 0; i < 20; i++ {
		ticks = append(ticks, fakeTick{prices: map[string]float64{"BTC/USD": 10.0 + 0.1*float64(i)}})
	}
	for _, p := range extra {
		ticks = append(ticks, fakeTick{prices: map[string]float64{"BTC/USD": p}})
	}
	return ticks
}

func testConfig(legacyRSI bool) *store.Config {
	cfg := store.Default()
	cfg.Universe = []string{"BTC/USD"}
	cfg.Strategy.LegacyRSIGate = legacyRSI
	return cfg
}

func stepN(t *testing.T, e *Engine, n int) *types.StepResult {
	t.Helper()
	var res *types.StepResult
	for i := 0; i < n; i++ {
		var err error
		res, err = e.Step(context.Background())
		require.NoError(t, err)
	}
	return res
}

func TestEngineBuysOnBreakoutThenTakesProfit(t *testing.T) {
	dir := t.TempDir()
	journal, err := tradelog.Open(dir)
	require.NoError(t, err)

	fb := &fakeBroker{ticks: sliding(25, 25.75)}
	e := newEngine(testConfig(true), fb, journal)

	res := stepN(t, e, 20)
	assert.Equal(t, types.StepIdle, res.Status)
	assert.Empty(t, res.Signals)

	res = stepN(t, e, 1)
	require.Len(t, res.Signals, 1)
	sig := res.Signals[0]
	assert.Equal(t, 1, sig.MACross)
	assert.Equal(t, 1, sig.Breakout)
	assert.Equal(t, 0, sig.RSIExtreme)
	assert.Equal(t, []string{"BTC/USD"}, res.Buys)
	assert.Equal(t, types.StepTraded, res.Status)

	require.Len(t, fb.orders, 1)
	assert.Equal(t, types.SideBuy, fb.orders[0].Side)
	assert.InDelta(t, 0.08, fb.orders[0].Quantity, 1e-12)

	positions := e.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, 25.0, positions[0].EntryPrice)
	assert.Equal(t, "T-1", positions[0].OrderID)

	res = stepN(t, e, 1)
	require.Len(t, res.Forced, 1)
	assert.Equal(t, ReasonTakeProfit, res.Forced[0].Reason)
	assert.Equal(t, []string{"BTC/USD"}, res.Sells)
	require.Len(t, fb.orders, 2)
	assert.Equal(t, types.SideSell, fb.orders[1].Side)
	assert.InDelta(t, 0.08, fb.orders[1].Quantity, 1e-12)
	assert.Empty(t, e.Positions())

	realized, closed := e.ledger.realized()
	assert.InDelta(t, 0.06, realized, 1e-9)
	assert.Equal(t, 1, closed)

	require.NoError(t, journal.Close())
	raw, err := os.ReadFile(tradelog.Path(dir, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(raw), `"kind":"fill"`))
	assert.Equal(t, 1, strings.Count(string(raw), `"kind":"decision"`))
}

func TestEngineRSIVoteCancelsBreakoutBuy(t *testing.T) {
	fb := &fakeBroker{ticks: sliding(25)}
	e := newEngine(testConfig(false), fb, nil)

	res := stepN(t, e, 21)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, -1, res.Signals[0].RSIExtreme)
	assert.Equal(t, 1, res.Signals[0].Total)
	assert.Empty(t, res.Buys)
	assert.Empty(t, fb.orders)
}

func TestEngineEmptyTickOnFetchError(t *testing.T) {
	fb := &fakeBroker{ticks: []fakeTick{{err: errors.New("timeout")}}}
	e := newEngine(testConfig(true), fb, nil)

	res, err := e.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StepEmpty, res.Status)
	assert.Equal(t, 1, res.Tick)
	assert.Equal(t, 0, e.histories["BTC/USD"].Len())

	_, err = e.Ingest(context.Background())
	assert.Error(t, err)
}

func TestEngineOrderFailureLeavesLedgerUntouched(t *testing.T) {
	fb := &fakeBroker{ticks: sliding(25), orderErr: errors.New("rejected")}
	e := newEngine(testConfig(true), fb, nil)

	res := stepN(t, e, 21)
	assert.Equal(t, []string{"BTC/USD"}, res.Buys)
	assert.Len(t, fb.orders, 1)
	assert.Empty(t, res.Fills)
	assert.Equal(t, types.StepIdle, res.Status)
	assert.Empty(t, e.Positions())
}

func TestEngineIgnoresUnpricedFill(t *testing.T) {
	fb := &fakeBroker{ticks: sliding(25), zeroFills: true}
	e := newEngine(testConfig(true), fb, nil)

	stepN(t, e, 21)
	assert.Len(t, fb.orders, 1)
	assert.Empty(t, e.Positions())
}

func TestEngineSkipsBuyAboveExposureCap(t *testing.T) {
	fb := &fakeBroker{ticks: sliding(25)}
	cfg := testConfig(true)
	cfg.Risk.MaxExposure = 0
	e := newEngine(cfg, fb, nil)

	res := stepN(t, e, 21)
	assert.Equal(t, []string{"BTC/USD"}, res.Buys)
	assert.Empty(t, fb.orders)
}

func TestEngineHeartbeat(t *testing.T) {
	fb := &fakeBroker{ticks: []fakeTick{
		{prices: map[string]float64{"BTC/USD": 10}},
		{err: errors.New("down")},
	}}
	cfg := testConfig(true)
	cfg.Loop.HeartbeatEvery = 2
	e := newEngine(cfg, fb, nil)

	res := stepN(t, e, 1)
	assert.Nil(t, res.Heartbeat)

	res = stepN(t, e, 1)
	assert.Equal(t, types.StepEmpty, res.Status)
	require.NotNil(t, res.Heartbeat)
	assert.Equal(t, 2, res.Heartbeat.Tick)
	assert.Equal(t, 0, res.Heartbeat.OpenPositions)
	assert.Zero(t, res.Heartbeat.Exposure)
}

func TestEngineIngestMissingAssetAppendsZero(t *testing.T) {
	fb := &fakeBroker{ticks: []fakeTick{{prices: map[string]float64{"BTC/USD": 10}}}}
	cfg := testConfig(true)
	cfg.Universe = []string{"BTC/USD", "ETH/USD"}
	e := newEngine(cfg, fb, nil)

	res, err := e.Ingest(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Fresh)
	assert.False(t, res.Updated)
	assert.Equal(t, 1, res.Samples)

	eth, ok := e.histories["ETH/USD"].latest()
	require.True(t, ok)
	assert.Zero(t, eth.LastPrice)
}

func TestEngineIngestUpdatesAfterTwentySamples(t *testing.T) {
	fb := &fakeBroker{ticks: sliding()}
	e := newEngine(testConfig(true), fb, nil)

	for i := 0; i < 19; i++ {
		res, err := e.Ingest(context.Background())
		require.NoError(t, err)
		assert.False(t, res.Updated)
	}
	res, err := e.Ingest(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Equal(t, 20, res.Samples)
	assert.Equal(t, 1, e.series["BTC/USD"].count)
}

func TestEngineStopLossForcesSell(t *testing.T) {
	fb := &fakeBroker{ticks: sliding(25, 24)}
	e := newEngine(testConfig(true), fb, nil)

	stepN(t, e, 21)
	require.Len(t, e.Positions(), 1)

	res := stepN(t, e, 1)
	require.Len(t, res.Forced, 1)
	assert.Equal(t, ReasonStopLoss, res.Forced[0].Reason)
	assert.Equal(t, types.StepTraded, res.Status)

	require.Len(t, fb.orders, 2)
	assert.Equal(t, types.SideSell, fb.orders[1].Side)
	assert.Equal(t, ReasonStopLoss, fb.orders[1].Tag)
	assert.Empty(t, e.Positions())

	realized, closed := e.ledger.realized()
	assert.InDelta(t, -0.08, realized, 1e-9)
	assert.Equal(t, 1, closed)
}

func TestEngineFailedSellKeepsPosition(t *testing.T) {
	fb := &fakeBroker{ticks: sliding(25, 24)}
	e := newEngine(testConfig(true), fb, nil)

	stepN(t, e, 21)
	require.Len(t, e.Positions(), 1)

	fb.orderErr = errors.New("venue unavailable")
	res := stepN(t, e, 1)
	assert.Equal(t, []string{"BTC/USD"}, res.Sells)
	assert.Len(t, fb.orders, 2)
	assert.Empty(t, res.Fills)
	assert.Equal(t, types.StepIdle, res.Status)

	positions := e.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, 25.0, positions[0].EntryPrice)
	assert.InDelta(t, 0.08, positions[0].Quantity, 1e-12)

	_, closed := e.ledger.realized()
	assert.Zero(t, closed)
}

func TestEngineDeathCrossSellsOnSignal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, logger.InitWithConfig(logger.LogConfig{Level: "INFO", Format: "json", Output: &buf}))
	t.Cleanup(func() { _ = logger.InitWithConfig(logger.LogConfig{Level: "INFO", Format: "json", Output: os.Stdout}) })

	fb := &fakeBroker{ticks: rising(1)}
	e := newEngine(testConfig(true), fb, nil)

	stepN(t, e, 20)
	require.NoError(t, e.ledger.open(context.Background(), "BTC/USD", 2, 1, time.Now(), "seed"))

	res := stepN(t, e, 1)
	require.Len(t, res.Signals, 1)
	sig := res.Signals[0]
	assert.Equal(t, -1, sig.MACross)
	assert.Equal(t, -1, sig.Breakout)
	assert.Equal(t, ActionSell, sig.Action)
	assert.Empty(t, res.Forced)
	assert.Equal(t, []string{"BTC/USD"}, res.Sells)

	require.Len(t, fb.orders, 1)
	assert.Equal(t, reasonSignal, fb.orders[0].Tag)
	assert.Equal(t, 2.0, fb.orders[0].Quantity)
	assert.Empty(t, e.Positions())

	// Exit at the entry price is not a profitable trade.
	assert.Contains(t, buf.String(), "Closed losing trade")
	assert.NotContains(t, buf.String(), "Closed profitable trade")
}

func TestEngineHeartbeatIgnoresStaleQuotes(t *testing.T) {
	fb := &fakeBroker{ticks: []fakeTick{
		{prices: map[string]float64{"BTC/USD": 100}},
		{err: errors.New("down")},
	}}
	cfg := testConfig(true)
	cfg.Loop.HeartbeatEvery = 2
	e := newEngine(cfg, fb, nil)

	stepN(t, e, 1)
	require.NoError(t, e.ledger.open(context.Background(), "BTC/USD", 1, 100, time.Now(), "seed"))
	assert.Equal(t, 100.0, e.ledger.totalExposure(e.snapshot.Price))

	res := stepN(t, e, 1)
	assert.Equal(t, types.StepEmpty, res.Status)
	require.NotNil(t, res.Heartbeat)
	assert.Equal(t, 1, res.Heartbeat.OpenPositions)
	assert.Zero(t, res.Heartbeat.Exposure)
}
