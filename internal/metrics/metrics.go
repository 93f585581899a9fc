// Package metrics exposes Prometheus collectors for the trading loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_ticks_total", Help: "Trading iterations by outcome"},
		[]string{"status"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_orders_total", Help: "Orders submitted by outcome"},
		[]string{"asset", "side", "result"},
	)
	RiskTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_risk_triggers_total", Help: "Forced sells raised by the risk manager"},
		[]string{"asset", "reason"},
	)
	SignalScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "bot_signal_score", Help: "Latest fused signal score per asset"},
		[]string{"asset"},
	)
	LastPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "bot_last_price", Help: "Latest ingested last price per asset"},
		[]string{"asset"},
	)
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bot_open_positions", Help: "Open positions in the ledger"},
	)
	Exposure = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bot_exposure", Help: "Mark-to-market value of open positions at the last heartbeat"},
	)
	RealizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bot_realized_pnl", Help: "Realized P&L in quote currency since start"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		OrdersTotal,
		RiskTriggersTotal,
		SignalScore,
		LastPrice,
		OpenPositions,
		Exposure,
		RealizedPnL,
	)
}
