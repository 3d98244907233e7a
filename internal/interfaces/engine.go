package interfaces

import (
	"context"

	"shell-tracker/internal/types"
)

type SignalEngine interface {
	// Evaluate scores the latest two bars. ok is false when the series is
	// too short or a required indicator is undefined.
	Evaluate(ctx context.Context, series *types.CandleSeries) (sig types.Signal, ok bool)
	// Execute applies a signal to the position at price and returns the
	// resulting simulated trade, if any.
	Execute(ctx context.Context, sig types.Signal, price float64) *types.Trade
	CheckStopConditions(ctx context.Context, price float64) *types.StopEvent
	Position() types.Position
	// ObserveBalance records the account balance. A held balance while
	// flat becomes a Long without entry.
	ObserveBalance(ctx context.Context, b types.Balance)
	Account() types.Balance
}

// SentimentSource exposes the most recent news sentiment, if any.
type SentimentSource interface {
	Current() (types.Sentiment, bool)
}
