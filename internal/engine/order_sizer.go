package engine

import (
	"strings"

	"github.com/shopspring/decimal"

	"spot-trading-bot/internal/store"
)

const quantityDecimals = 6

// orderSizer turns a buy decision into a venue-acceptable quantity.
type orderSizer struct {
	budget      float64
	maxExposure float64
	minOrder    map[string]store.MinOrder
	intBases    []string
}

func newOrderSizer(budget, maxExposure float64, minOrder map[string]store.MinOrder, intBases []string) *orderSizer {
	return &orderSizer{budget: budget, maxExposure: maxExposure, minOrder: minOrder, intBases: intBases}
}

// quantity returns 0 when no order should be placed.
func (sz *orderSizer) quantity(asset string, price, exposure float64) float64 {
	if exposure >= sz.maxExposure {
		return 0
	}
	if price <= 0 {
		return 0
	}

	var qty decimal.Decimal
	budget := decimal.NewFromFloat(sz.budget)
	px := decimal.NewFromFloat(price)

	m, ok := sz.minOrder[asset]
	switch {
	case ok && m.Quantity != nil:
		units := budget.Div(px).Floor()
		qty = decimal.Max(decimal.NewFromInt(int64(*m.Quantity)), units)
	case ok && m.Notional != nil:
		if sz.budget < *m.Notional {
			qty = decimal.NewFromFloat(*m.Notional).Div(px)
		} else {
			qty = budget.Div(px)
		}
	default:
		qty = budget.Div(px)
	}

	if sz.integerOnly(asset) {
		qty = qty.Truncate(0)
	} else {
		qty = qty.Round(quantityDecimals)
	}
	f, _ := qty.Float64()
	return f
}

func (sz *orderSizer) integerOnly(asset string) bool {
	for _, b := range sz.intBases {
		if b != "" && strings.Contains(asset, b) {
			return true
		}
	}
	return false
}
