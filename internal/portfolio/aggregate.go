// Package portfolio turns a transaction log into positions and values them
// against live prices.
package portfolio

import (
	"kenfolio/internal/models"

	"github.com/shopspring/decimal"
)

// Aggregate folds the log into per-symbol positions. A buy adds (qty, qty*price),
// a sell subtracts (qty, qty*price) at the sale price. Overdrawn positions are
// kept as they are; the result does not depend on the order of txs.
func Aggregate(txs []models.Transaction) map[string]models.Position {
	out := make(map[string]models.Position)
	for _, t := range txs {
		p := out[t.Symbol]
		amount := t.Quantity.Mul(t.Price)
		switch t.Kind {
		case models.Buy:
			p.Quantity = p.Quantity.Add(t.Quantity)
			p.CostBasis = p.CostBasis.Add(amount)
		case models.Sell:
			p.Quantity = p.Quantity.Sub(t.Quantity)
			p.CostBasis = p.CostBasis.Sub(amount)
		default:
			continue
		}
		out[t.Symbol] = p
	}
	return out
}

// AverageCost returns cost/quantity, or false when the position holds nothing.
func AverageCost(p models.Position) (decimal.Decimal, bool) {
	if !p.Quantity.IsPositive() {
		return decimal.Zero, false
	}
	return p.CostBasis.Div(p.Quantity), true
}

// SamePositions compares two position maps by value.
func SamePositions(a, b map[string]models.Position) bool {
	if len(a) != len(b) {
		return false
	}
	for sym, pa := range a {
		pb, ok := b[sym]
		if !ok || !pa.Quantity.Equal(pb.Quantity) || !pa.CostBasis.Equal(pb.CostBasis) {
			return false
		}
	}
	return true
}
