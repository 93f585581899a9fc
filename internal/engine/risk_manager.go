package engine

import (
	"context"

	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/types"
)

const (
	ReasonStopLoss   = "STOP_LOSS"
	ReasonTakeProfit = "TAKE_PROFIT"
)

// riskManager force-sells positions that crossed their stop-loss or
// take-profit band. Both bounds are inclusive.
type riskManager struct {
	stopLossPct   float64
	takeProfitPct float64
}

func newRiskManager(stopLossPct, takeProfitPct float64) *riskManager {
	return &riskManager{stopLossPct: stopLossPct, takeProfitPct: takeProfitPct}
}

// evaluate returns one trigger per position to force-sell, in positions order.
// Positions without a positive entry price or a current price are skipped.
func (rm *riskManager) evaluate(ctx context.Context, positions []types.Position, price func(string) (float64, bool)) []types.RiskTrigger {
	var out []types.RiskTrigger
	for _, p := range positions {
		if p.EntryPrice <= 0 {
			continue
		}
		cur, ok := price(p.Asset)
		if !ok {
			continue
		}
		pnlPct := (cur - p.EntryPrice) / p.EntryPrice

		var reason string
		switch {
		case pnlPct <= -rm.stopLossPct:
			reason = ReasonStopLoss
		case pnlPct >= rm.takeProfitPct:
			reason = ReasonTakeProfit
		default:
			continue
		}
		logger.Risk(ctx, p.Asset, reason,
			"pnl_pct", pnlPct,
			"entry_price", p.EntryPrice,
			"current_price", cur,
			"quantity", p.Quantity,
		)
		out = append(out, types.RiskTrigger{Asset: p.Asset, Reason: reason, PnLPct: pnlPct})
	}
	return out
}

// mergeSells unions strategy and risk sells, keeping first-seen order.
func mergeSells(strategy []string, forced []types.RiskTrigger) []string {
	seen := make(map[string]bool, len(strategy)+len(forced))
	out := make([]string, 0, len(strategy)+len(forced))
	for _, a := range strategy {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	for _, f := range forced {
		if !seen[f.Asset] {
			seen[f.Asset] = true
			out = append(out, f.Asset)
		}
	}
	return out
}
