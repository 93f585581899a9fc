package engine

import (
	"spot-trading-bot/internal/interfaces"
	"spot-trading-bot/internal/store"
	"spot-trading-bot/internal/tradelog"
)

// New builds an engine over brk. A nil journal discards fills and decisions.
func New(cfg *store.Config, brk interfaces.Broker, journal *tradelog.Journal) interfaces.Engine {
	return newEngine(cfg, brk, journal)
}
