package brokerobs

import (
	"context"

	"shell-tracker/internal/interfaces"
	"shell-tracker/internal/logger"
	"shell-tracker/internal/trace"
	"shell-tracker/internal/types"
)

// observableMarketData wraps a MarketData with logging and tracing
type observableMarketData struct {
	md interfaces.MarketData
}

var _ interfaces.MarketData = (*observableMarketData)(nil)

// Wrap wraps a market data gateway with observability middleware
func Wrap(md interfaces.MarketData) interfaces.MarketData {
	return &observableMarketData{md: md}
}

func (ob *observableMarketData) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "broker.LatestPrice")
	defer span.End()

	price, err := ob.md.LatestPrice(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch price", err, "symbol", symbol)
		return 0, err
	}

	logger.DebugSkip(ctx, 1, "Price fetched", "symbol", symbol, "price", price)
	return price, nil
}

func (ob *observableMarketData) Candles(ctx context.Context, symbol, interval string) (*types.CandleSeries, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Candles")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching candles", "symbol", symbol, "interval", interval)

	series, err := ob.md.Candles(ctx, symbol, interval)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch candles", err, "symbol", symbol, "interval", interval)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Candles fetched",
		"symbol", symbol,
		"count", series.Len(),
		"simulated", series.Simulated,
	)
	return series, nil
}

func (ob *observableMarketData) Balance(ctx context.Context, asset string) (types.Balance, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Balance")
	defer span.End()

	bal, err := ob.md.Balance(ctx, asset)
	if err != nil {
		logger.DebugSkip(ctx, 1, "Balance unavailable", "asset", asset, "error", err)
		return bal, err
	}

	logger.InfoSkip(ctx, 1, "Balance updated", "asset", asset, "free", bal.Free, "value_usdt", bal.Value)
	return bal, nil
}
