package engine

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"shell-tracker/internal/types"
)

// heldBalanceThreshold is the free balance above which the account is
// treated as holding the base asset.
const heldBalanceThreshold = 0.1

// positionManager owns the single simulated position and the last account
// reading. Every transition happens under one lock.
type positionManager struct {
	mu      sync.RWMutex
	pos     types.Position
	account types.Balance
}

func newPositionManager() *positionManager {
	return &positionManager{pos: types.Position{Side: types.SideFlat}}
}

func (pm *positionManager) get() types.Position {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.pos
}

// open enters a long at price. It is a no-op unless flat.
func (pm *positionManager) open(price decimal.Decimal, at time.Time) bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.pos.IsLong() {
		return false
	}
	pm.pos = types.Position{
		Side:     types.SideLong,
		Entry:    decimal.NewNullDecimal(price),
		OpenedAt: at,
	}
	return true
}

// close returns to flat and hands back the entry, which may be unknown.
func (pm *positionManager) close() (decimal.NullDecimal, bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if !pm.pos.IsLong() {
		return decimal.NullDecimal{}, false
	}
	entry := pm.pos.Entry
	pm.pos = types.Position{Side: types.SideFlat}
	return entry, true
}

// stopOut closes a long with a known entry when price crosses a stop level.
func (pm *positionManager) stopOut(price decimal.Decimal, sm *stopManager) (types.StopEvent, bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if !pm.pos.IsLong() || !pm.pos.Entry.Valid {
		return types.StopEvent{}, false
	}
	entry := pm.pos.Entry.Decimal
	kind, hit := sm.check(entry, price)
	if !hit {
		return types.StopEvent{}, false
	}
	pm.pos = types.Position{Side: types.SideFlat}
	return types.StopEvent{
		Kind:      kind,
		Price:     price.InexactFloat64(),
		ProfitPct: profitPct(entry, price),
	}, true
}

// observe stores the balance and reports whether it turned a flat position
// into a Long without entry.
func (pm *positionManager) observe(b types.Balance, at time.Time) bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.account = b
	if b.Free <= heldBalanceThreshold || pm.pos.IsLong() {
		return false
	}
	pm.pos = types.Position{Side: types.SideLong, OpenedAt: at}
	return true
}

func (pm *positionManager) balance() types.Balance {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.account
}
