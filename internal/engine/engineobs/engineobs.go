package engineobs

import (
	"context"
	"time"

	"shell-tracker/internal/interfaces"
	"shell-tracker/internal/logger"
	"shell-tracker/internal/trace"
	"shell-tracker/internal/types"
)

type observableEngine struct {
	engine interfaces.SignalEngine
}

var _ interfaces.SignalEngine = (*observableEngine)(nil)

func Wrap(eng interfaces.SignalEngine) interfaces.SignalEngine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Evaluate(ctx context.Context, series *types.CandleSeries) (types.Signal, bool) {
	ctx, span := trace.StartSpan(ctx, "engine.Evaluate")
	defer span.End()

	start := time.Now()
	sig, ok := oe.engine.Evaluate(ctx, series)
	if !ok {
		logger.DebugSkip(ctx, 1, "Signal evaluation skipped",
			"rows", series.Len(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return sig, false
	}

	logger.DebugSkip(ctx, 1, "Signal evaluated",
		"action", sig.Action,
		"confidence", sig.Confidence,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return sig, true
}

func (oe *observableEngine) Execute(ctx context.Context, sig types.Signal, price float64) *types.Trade {
	ctx, span := trace.StartSpan(ctx, "engine.Execute")
	defer span.End()

	trade := oe.engine.Execute(ctx, sig, price)
	if trade == nil {
		logger.DebugSkip(ctx, 1, "Signal not actionable for current position",
			"action", sig.Action,
			"position", oe.engine.Position().Side,
		)
	}
	return trade
}

func (oe *observableEngine) CheckStopConditions(ctx context.Context, price float64) *types.StopEvent {
	ctx, span := trace.StartSpan(ctx, "engine.CheckStopConditions")
	defer span.End()

	ev := oe.engine.CheckStopConditions(ctx, price)
	if ev != nil {
		logger.InfoSkip(ctx, 1, "Stop condition triggered",
			"kind", ev.Kind,
			"price", ev.Price,
			"profit_pct", ev.ProfitPct,
		)
	}
	return ev
}

func (oe *observableEngine) Position() types.Position { return oe.engine.Position() }

func (oe *observableEngine) ObserveBalance(ctx context.Context, b types.Balance) {
	oe.engine.ObserveBalance(ctx, b)
}

func (oe *observableEngine) Account() types.Balance { return oe.engine.Account() }
