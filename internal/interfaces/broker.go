package interfaces

import (
	"context"

	"spot-trading-bot/internal/types"
)

// MarketData supplies one ticker snapshot for the whole universe per call.
type MarketData interface {
	FetchSnapshot(ctx context.Context) (types.MarketSnapshot, error)
}

// Broker is the venue the engine trades against.
type Broker interface {
	MarketData
	PlaceOrder(ctx context.Context, req types.OrderReq) (types.Fill, error)
}
