package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/types"
)

var (
	ErrPositionExists = errors.New("position already open")
	ErrNoPosition     = errors.New("no open position")
)

// positionManager is the authoritative record of open positions, at most one
// per asset. Mutations come only from the execution step; the lock exists for
// concurrent readers such as the status server.
type positionManager struct {
	mu          sync.RWMutex
	positions   map[string]types.Position
	realizedPnL float64
	closed      int
}

func newPositionManager() *positionManager {
	return &positionManager{
		positions: make(map[string]types.Position),
	}
}

func (pm *positionManager) has(asset string) bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	_, ok := pm.positions[asset]
	return ok
}

func (pm *positionManager) get(asset string) (types.Position, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	p, ok := pm.positions[asset]
	return p, ok
}

// open records a filled buy. The one-per-asset rule is enforced here.
func (pm *positionManager) open(ctx context.Context, asset string, qty, fillPrice float64, ts time.Time, orderID string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, ok := pm.positions[asset]; ok {
		logger.Warn(ctx, "Refusing to open a second position", "asset", asset, "order_id", orderID)
		return fmt.Errorf("open %s: %w", asset, ErrPositionExists)
	}
	pm.positions[asset] = types.Position{
		Asset:      asset,
		Quantity:   qty,
		EntryPrice: fillPrice,
		EntryTime:  ts,
		OrderID:    orderID,
	}
	return nil
}

// close removes the position for asset and books realized P&L at exitPrice.
func (pm *positionManager) close(ctx context.Context, asset string, exitPrice float64) (types.Position, float64, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	p, ok := pm.positions[asset]
	if !ok {
		logger.Warn(ctx, "Attempted to close with no position", "asset", asset)
		return types.Position{}, 0, fmt.Errorf("close %s: %w", asset, ErrNoPosition)
	}
	delete(pm.positions, asset)

	pnl := (exitPrice - p.EntryPrice) * p.Quantity
	pm.realizedPnL += pnl
	pm.closed++
	return p, pnl, nil
}

// totalExposure marks every open position to price; a position whose price is
// unavailable contributes 0.
func (pm *positionManager) totalExposure(price func(string) (float64, bool)) float64 {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	total := 0.0
	for asset, p := range pm.positions {
		px, ok := price(asset)
		if !ok {
			continue
		}
		total += p.Quantity * px
	}
	return total
}

func (pm *positionManager) count() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.positions)
}

// snapshot returns a copy of open positions sorted by asset.
func (pm *positionManager) snapshot() []types.Position {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	out := make([]types.Position, 0, len(pm.positions))
	for _, p := range pm.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}

func (pm *positionManager) realized() (pnl float64, closed int) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.realizedPnL, pm.closed
}
