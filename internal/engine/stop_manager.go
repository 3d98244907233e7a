package engine

import (
	"github.com/shopspring/decimal"

	"shell-tracker/internal/types"
)

var hundred = decimal.NewFromInt(100)

// stopManager derives stop-loss and take-profit levels from the entry price.
type stopManager struct {
	slPct decimal.Decimal
	tpPct decimal.Decimal
}

func newStopManager(stopLossPct, takeProfitPct float64) *stopManager {
	return &stopManager{
		slPct: decimal.NewFromFloat(stopLossPct),
		tpPct: decimal.NewFromFloat(takeProfitPct),
	}
}

func (sm *stopManager) stopLossPrice(entry decimal.Decimal) decimal.Decimal {
	return entry.Mul(decimal.NewFromInt(1).Sub(sm.slPct.Div(hundred)))
}

func (sm *stopManager) takeProfitPrice(entry decimal.Decimal) decimal.Decimal {
	return entry.Mul(decimal.NewFromInt(1).Add(sm.tpPct.Div(hundred)))
}

// check reports which level price has crossed. Stop-loss wins when both have.
func (sm *stopManager) check(entry, price decimal.Decimal) (types.StopKind, bool) {
	if price.LessThanOrEqual(sm.stopLossPrice(entry)) {
		return types.StopLoss, true
	}
	if price.GreaterThanOrEqual(sm.takeProfitPrice(entry)) {
		return types.TakeProfit, true
	}
	return "", false
}

// profitPct is (price-entry)/entry*100.
func profitPct(entry, price decimal.Decimal) float64 {
	if entry.IsZero() {
		return 0
	}
	return price.Sub(entry).Div(entry).Mul(hundred).InexactFloat64()
}
