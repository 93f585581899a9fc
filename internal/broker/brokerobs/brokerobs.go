package brokerobs

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"spot-trading-bot/internal/interfaces"
	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/trace"
	"spot-trading-bot/internal/types"
)

// observableBroker wraps a Broker with observability (logging & tracing)
type observableBroker struct {
	broker interfaces.Broker
}

// Compile-time interface check
var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware
func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{
		broker: broker,
	}
}

// FetchSnapshot fetches the ticker with observability
func (ob *observableBroker) FetchSnapshot(ctx context.Context) (types.MarketSnapshot, error) {
	ctx, span := trace.StartSpan(ctx, "broker.FetchSnapshot")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching market snapshot")

	snap, err := ob.broker.FetchSnapshot(ctx)
	if err != nil {
		span.RecordError(err)
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch market snapshot", err)
		return snap, err
	}

	span.SetAttributes(attribute.Int("pairs", len(snap.Quotes)))
	logger.DebugSkip(ctx, 1, "Market snapshot fetched", "pairs", len(snap.Quotes))
	return snap, nil
}

// PlaceOrder places an order with observability
func (ob *observableBroker) PlaceOrder(ctx context.Context, req types.OrderReq) (types.Fill, error) {
	ctx, span := trace.StartSpan(ctx, "broker.PlaceOrder")
	defer span.End()

	span.SetAttributes(
		attribute.String("asset", req.Asset),
		attribute.String("side", string(req.Side)),
		attribute.Float64("quantity", req.Quantity),
	)
	logger.InfoSkip(ctx, 1, "Placing order",
		"asset", req.Asset,
		"side", req.Side,
		"quantity", req.Quantity,
		"tag", req.Tag,
	)

	fill, err := ob.broker.PlaceOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place order", err,
			"asset", req.Asset,
			"side", req.Side,
			"quantity", req.Quantity,
		)
		return types.Fill{}, err
	}

	logger.InfoSkip(ctx, 1, "Order placed successfully",
		"asset", req.Asset,
		"order_id", fill.OrderID,
		"status", fill.Status,
		"filled_price", fill.FilledPrice,
	)
	return fill, nil
}
