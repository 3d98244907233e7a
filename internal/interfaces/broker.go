package interfaces

import (
	"context"

	"shell-tracker/internal/types"
)

// MarketData is the exchange gateway. Implementations degrade to simulated
// data instead of failing, so errors are rare and informational.
type MarketData interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
	Candles(ctx context.Context, symbol, interval string) (*types.CandleSeries, error)
	Balance(ctx context.Context, asset string) (types.Balance, error)
}
