package engine

import (
	"context"
	"time"

	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/types"
)

// sellReason is the risk reason when asset was force-sold, SIGNAL otherwise.
func sellReason(asset string, forced []types.RiskTrigger) string {
	for _, f := range forced {
		if f.Asset == asset {
			return f.Reason
		}
	}
	return reasonSignal
}

func logClosedTrade(ctx context.Context, p types.Position, exitPrice, pnl float64, held time.Duration) {
	pct := 0.0
	if p.EntryPrice > 0 {
		pct = (exitPrice - p.EntryPrice) / p.EntryPrice * 100
	}
	fields := []any{
		"asset", p.Asset,
		"entry_price", p.EntryPrice,
		"exit_price", exitPrice,
		"quantity", p.Quantity,
		"pnl", pnl,
		"pnl_pct", pct,
		"held", held.Round(time.Second).String(),
	}
	if pnl > 0 {
		logger.Info(ctx, "Closed profitable trade", fields...)
		return
	}
	logger.Warn(ctx, "Closed losing trade", fields...)
}
