package engine

import (
	"context"
	"fmt"

	"spot-trading-bot/internal/interfaces"
	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/metrics"
	"spot-trading-bot/internal/tradelog"
	"spot-trading-bot/internal/types"
)

// orderExecutor submits market orders and journals confirmed fills. It never
// retries: a failed submission is logged and the caller drops the signal.
type orderExecutor struct {
	broker  interfaces.Broker
	journal *tradelog.Journal
}

func newOrderExecutor(broker interfaces.Broker, journal *tradelog.Journal) *orderExecutor {
	return &orderExecutor{broker: broker, journal: journal}
}

// submit returns the fill only when the venue confirmed it with a positive
// fill price; anything else is an error and must not touch the ledger.
func (oe *orderExecutor) submit(ctx context.Context, asset string, side types.Side, qty float64, tag string) (types.Fill, error) {
	op := logger.StartOperation(ctx, "engine.submit_order",
		"asset", asset,
		"side", string(side),
		"quantity", qty,
		"tag", tag,
	)
	fill, err := oe.broker.PlaceOrder(op.Context(), types.OrderReq{Asset: asset, Side: side, Quantity: qty, Tag: tag})
	if err != nil {
		metrics.OrdersTotal.WithLabelValues(asset, string(side), "failed").Inc()
		op.EndWithError(err)
		return types.Fill{}, err
	}
	if fill.FilledPrice <= 0 {
		metrics.OrdersTotal.WithLabelValues(asset, string(side), "unpriced").Inc()
		err := fmt.Errorf("%s %s: fill without price (order %s)", side, asset, fill.OrderID)
		op.EndWithError(err, "order_id", fill.OrderID)
		return types.Fill{}, err
	}
	if fill.Asset == "" {
		fill.Asset = asset
	}
	if fill.Side == "" {
		fill.Side = side
	}
	if fill.Quantity == 0 {
		fill.Quantity = qty
	}
	metrics.OrdersTotal.WithLabelValues(asset, string(side), "filled").Inc()
	op.End("order_id", fill.OrderID, "filled_price", fill.FilledPrice)
	return fill, nil
}

func (oe *orderExecutor) record(fill types.Fill, reason string, pnl float64) {
	oe.journal.Fill(tradelog.Entry{
		Asset:    fill.Asset,
		Side:     fill.Side,
		Quantity: fill.Quantity,
		Price:    fill.FilledPrice,
		OrderID:  fill.OrderID,
		Reason:   reason,
		PnL:      pnl,
	})
}

func (oe *orderExecutor) recordDecision(sig types.Signal, ind types.Indicators) {
	oe.journal.Decision(tradelog.DecisionEntry{
		Asset:      sig.Asset,
		Action:     sig.Action,
		Score:      sig.Total,
		Price:      sig.Price,
		Signal:     sig,
		Indicators: ind,
	})
}
