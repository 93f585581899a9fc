package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spot-trading-bot/internal/interfaces"
	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/metrics"
	"spot-trading-bot/internal/store"
	"spot-trading-bot/internal/tradelog"
	"spot-trading-bot/internal/types"
)

const reasonSignal = "SIGNAL"

// Engine owns every piece of per-asset state: price history, indicator
// series and the position ledger. It is driven by a single goroutine; only
// Positions may be called concurrently.
type Engine struct {
	cfg    *store.Config
	broker interfaces.Broker

	histories map[string]*priceHistory
	series    map[string]*indicatorSeries

	indicators *indicatorEngine
	fusion     *signalFusion
	risk       *riskManager
	sizer      *orderSizer
	ledger     *positionManager
	exec       *orderExecutor

	snapshot types.MarketSnapshot
	tick     int
	now      func() time.Time
}

func newEngine(cfg *store.Config, brk interfaces.Broker, journal *tradelog.Journal) *Engine {
	if journal == nil {
		journal = tradelog.Nop()
	}
	e := &Engine{
		cfg:        cfg,
		broker:     brk,
		histories:  make(map[string]*priceHistory, len(cfg.Universe)),
		series:     make(map[string]*indicatorSeries, len(cfg.Universe)),
		indicators: newIndicatorEngine(cfg.Indicators.ShortWindow, cfg.Indicators.LongWindow, cfg.Indicators.RSIPeriod),
		fusion:     newSignalFusion(cfg.Strategy.LegacyRSIGate),
		risk:       newRiskManager(cfg.Risk.StopLossPct, cfg.Risk.TakeProfitPct),
		sizer:      newOrderSizer(cfg.Sizing.Budget, cfg.Risk.MaxExposure, cfg.Sizing.MinOrder, cfg.Sizing.IntegerOnlyBases),
		ledger:     newPositionManager(),
		exec:       newOrderExecutor(brk, journal),
		snapshot:   types.MarketSnapshot{Quotes: map[string]types.Quote{}},
		now:        time.Now,
	}
	capacity := cfg.HistoryCapacity()
	for _, asset := range cfg.Universe {
		e.histories[asset] = newPriceHistory(capacity)
		e.series[asset] = &indicatorSeries{}
	}
	return e
}

// Ingest fetches one snapshot and appends a sample for every asset in the
// universe. Assets missing from the snapshot get a zero sample.
func (e *Engine) Ingest(ctx context.Context) (types.IngestResult, error) {
	snap, err := e.broker.FetchSnapshot(ctx)
	if err != nil {
		// Stale quotes must not price anything on a tick without data.
		e.snapshot = types.MarketSnapshot{}
		return types.IngestResult{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	if snap.Quotes == nil {
		snap.Quotes = map[string]types.Quote{}
	}
	e.snapshot = snap

	res := types.IngestResult{Fresh: true}
	for i, asset := range e.cfg.Universe {
		q, ok := snap.Quotes[asset]
		if !ok {
			logger.Debug(ctx, "Asset missing from snapshot", "asset", asset)
		}
		h := e.histories[asset]
		h.append(q.LastPrice, q.ReferencePrice)
		metrics.LastPrice.WithLabelValues(asset).Set(q.LastPrice)

		if i == 0 || h.Len() < res.Samples {
			res.Samples = h.Len()
		}

		ind, ready := e.indicators.compute(h)
		if !ready {
			continue
		}
		e.series[asset].push(ind)
		res.Updated = true
		logger.Debug(ctx, "Indicators updated",
			"asset", asset,
			"short_ma", ind.ShortMA,
			"long_ma", ind.LongMA,
			"rsi", ind.RSI,
		)
	}
	return res, nil
}

// Step runs one trading iteration. A failed fetch yields an EMPTY result,
// not an error.
func (e *Engine) Step(ctx context.Context) (*types.StepResult, error) {
	res := &types.StepResult{Status: types.StepIdle}

	ing, err := e.Ingest(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Market data unavailable, skipping tick", err)
		res.Status = types.StepEmpty
		e.finishTick(ctx, res)
		return res, nil
	}

	if ing.Updated {
		var sells []string
		res.Signals, res.Buys, sells = e.evaluateSignals(ctx)
		res.Forced = e.risk.evaluate(ctx, e.ledger.snapshot(), e.snapshot.Price)
		for _, f := range res.Forced {
			metrics.RiskTriggersTotal.WithLabelValues(f.Asset, f.Reason).Inc()
		}
		res.Sells = mergeSells(sells, res.Forced)

		if len(res.Buys) > 0 || len(res.Sells) > 0 {
			e.executeBuys(ctx, res)
			e.executeSells(ctx, res)
		}
		if len(res.Fills) > 0 {
			res.Status = types.StepTraded
		}
	}

	e.finishTick(ctx, res)
	return res, nil
}

// Positions returns a copy of the open positions sorted by asset.
func (e *Engine) Positions() []types.Position {
	return e.ledger.snapshot()
}

// evaluateSignals fuses every asset in universe order. Assets with fewer than
// two indicator snapshots are not evaluated.
func (e *Engine) evaluateSignals(ctx context.Context) (signals []types.Signal, buys, sells []string) {
	for _, asset := range e.cfg.Universe {
		s := e.series[asset]
		if s.count < 2 {
			continue
		}
		h := e.histories[asset]
		latest, _ := h.latest()
		in := fusionInput{
			cur:    s.cur,
			prev:   s.previous(),
			window: h.lastPrices(breakoutWindow),
			price:  latest.LastPrice,
		}
		sig := e.fusion.evaluate(asset, in, e.ledger.has(asset))
		signals = append(signals, sig)
		metrics.SignalScore.WithLabelValues(asset).Set(float64(sig.Total))

		switch sig.Action {
		case ActionBuy:
			buys = append(buys, asset)
		case ActionSell:
			sells = append(sells, asset)
		default:
			if logger.IsDebugEnabled() {
				logger.Debug(ctx, "No signal", append([]any{"asset", asset, "score", sig.Total}, e.fusion.logFields(sig)...)...)
			}
			continue
		}
		logger.Decision(ctx, asset, sig.Action, sig.Total, append(e.fusion.logFields(sig), "price", sig.Price, "change_pct", latest.ChangePct)...)
		e.exec.recordDecision(sig, s.cur)
	}
	return signals, buys, sells
}

func (e *Engine) executeBuys(ctx context.Context, res *types.StepResult) {
	for _, asset := range res.Buys {
		price, _ := e.snapshot.Price(asset)
		exposure := e.ledger.totalExposure(e.snapshot.Price)
		qty := e.sizer.quantity(asset, price, exposure)
		if qty <= 0 {
			logger.Info(ctx, "Buy skipped by sizing",
				"asset", asset,
				"price", price,
				"exposure", exposure,
				"max_exposure", e.cfg.Risk.MaxExposure,
			)
			continue
		}

		fill, err := e.exec.submit(ctx, asset, types.SideBuy, qty, reasonSignal)
		if err != nil {
			continue
		}
		if err := e.ledger.open(ctx, asset, fill.Quantity, fill.FilledPrice, e.now(), fill.OrderID); err != nil {
			logger.ErrorWithErr(ctx, "Filled buy not recorded", err, "asset", asset, "order_id", fill.OrderID)
			continue
		}
		logger.Trade(ctx, asset, string(types.SideBuy), fill.Quantity, fill.FilledPrice, fill.OrderID,
			"signal_price", price,
			"exposure_before", exposure,
		)
		e.exec.record(fill, reasonSignal, 0)
		res.Fills = append(res.Fills, fill)
	}
}

func (e *Engine) executeSells(ctx context.Context, res *types.StepResult) {
	for _, asset := range res.Sells {
		pos, ok := e.ledger.get(asset)
		if !ok {
			logger.Warn(ctx, "Sell candidate without open position", "asset", asset)
			continue
		}
		reason := sellReason(asset, res.Forced)

		fill, err := e.exec.submit(ctx, asset, types.SideSell, pos.Quantity, reason)
		if err != nil {
			continue
		}
		closed, pnl, err := e.ledger.close(ctx, asset, fill.FilledPrice)
		if err != nil {
			if errors.Is(err, ErrNoPosition) {
				logger.ErrorWithErr(ctx, "Filled sell had no position to close", err, "asset", asset, "order_id", fill.OrderID)
			}
			continue
		}
		logger.Trade(ctx, asset, string(types.SideSell), fill.Quantity, fill.FilledPrice, fill.OrderID,
			"reason", reason,
			"entry_price", closed.EntryPrice,
			"realized_pnl", pnl,
		)
		logClosedTrade(ctx, closed, fill.FilledPrice, pnl, e.now().Sub(closed.EntryTime))
		e.exec.record(fill, reason, pnl)
		res.Fills = append(res.Fills, fill)

		realized, _ := e.ledger.realized()
		metrics.RealizedPnL.Set(realized)
	}
}

func (e *Engine) finishTick(ctx context.Context, res *types.StepResult) {
	e.tick++
	res.Tick = e.tick
	metrics.TicksTotal.WithLabelValues(string(res.Status)).Inc()
	metrics.OpenPositions.Set(float64(e.ledger.count()))

	every := e.cfg.Loop.HeartbeatEvery
	if every <= 0 || e.tick%every != 0 {
		return
	}
	hb := &types.Heartbeat{
		Tick:          e.tick,
		OpenPositions: e.ledger.count(),
		Exposure:      e.ledger.totalExposure(e.snapshot.Price),
	}
	res.Heartbeat = hb
	metrics.Exposure.Set(hb.Exposure)

	realized, closed := e.ledger.realized()
	logger.Info(ctx, "Heartbeat",
		"tick", hb.Tick,
		"open_positions", hb.OpenPositions,
		"exposure", hb.Exposure,
		"max_exposure", e.cfg.Risk.MaxExposure,
		"realized_pnl", realized,
		"closed_trades", closed,
	)
}
