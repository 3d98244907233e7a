package engine

import (
	"context"

	"shell-tracker/internal/logger"
	"shell-tracker/internal/tradelog"
	"shell-tracker/internal/types"
)

// orderExecutor books simulated fills. Nothing reaches the exchange.
type orderExecutor struct {
	journal *tradelog.Journal
}

func newOrderExecutor(j *tradelog.Journal) *orderExecutor {
	return &orderExecutor{journal: j}
}

// record logs a fill and appends it to the journal when one is configured.
func (oe *orderExecutor) record(ctx context.Context, symbol string, side types.Action, price float64, profit *float64, reason, sentiment string) {
	fields := []any{"reason", reason}
	if profit != nil {
		fields = append(fields, "profit_pct", *profit)
	}
	if sentiment != "" {
		fields = append(fields, "sentiment", sentiment)
	}
	logger.Trade(ctx, symbol, string(side), price, fields...)

	if oe.journal == nil {
		return
	}
	err := oe.journal.Append(tradelog.Entry{
		Symbol:    symbol,
		Side:      string(side),
		Price:     price,
		ProfitPct: profit,
		Reason:    reason,
		Sentiment: sentiment,
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to append trade journal", err, "symbol", symbol)
	}
}

func (oe *orderExecutor) recordDecision(ctx context.Context, symbol string, sig types.Signal, last types.Bar) {
	if oe.journal == nil {
		return
	}
	err := oe.journal.AppendDecision(tradelog.DecisionEntry{
		Symbol:         symbol,
		Action:         string(sig.Action),
		Confidence:     sig.Confidence,
		Recommendation: sig.Recommendation,
		Price:          sig.Price,
		BuyScore:       sig.BuyScore,
		SellScore:      sig.SellScore,
		Indicators:     indicatorSnapshot(last),
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to append decision journal", err, "symbol", symbol)
	}
}
