// Package engine turns indicator rows and news sentiment into BUY/SELL/NEUTRAL
// signals and keeps the single simulated long-only position.
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"shell-tracker/internal/events"
	"shell-tracker/internal/interfaces"
	"shell-tracker/internal/logger"
	"shell-tracker/internal/store"
	"shell-tracker/internal/tradelog"
	"shell-tracker/internal/types"
)

const reasonSignal = "SIGNAL"

type Engine struct {
	cfg       *store.Handle
	sentiment interfaces.SentimentSource
	pub       events.Publisher
	pm        *positionManager
	exec      *orderExecutor
	now       func() time.Time
}

var _ interfaces.SignalEngine = (*Engine)(nil)

type Option func(*Engine)

// WithJournal appends every fill and decision to j.
func WithJournal(j *tradelog.Journal) Option {
	return func(e *Engine) { e.exec = newOrderExecutor(j) }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

type noSentiment struct{}

func (noSentiment) Current() (types.Sentiment, bool) { return types.Sentiment{}, false }

// New builds an engine. sentiment may be nil when news is not wired.
func New(cfg *store.Handle, sentiment interfaces.SentimentSource, pub events.Publisher, opts ...Option) *Engine {
	if sentiment == nil {
		sentiment = noSentiment{}
	}
	e := &Engine{
		cfg:       cfg,
		sentiment: sentiment,
		pub:       pub,
		pm:        newPositionManager(),
		exec:      newOrderExecutor(nil),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Evaluate(ctx context.Context, series *types.CandleSeries) (types.Signal, bool) {
	c := e.cfg.Snapshot()
	cur, has := e.sentiment.Current()

	sig, ok := evaluate(series, cur, has, c.Trading)
	if !ok {
		logger.Debug(ctx, "No signal: series too short or indicators undefined", "rows", series.Len())
		return sig, false
	}

	logger.Decision(ctx, c.Trading.Symbol, string(sig.Action), sig.Confidence, sig.Recommendation,
		"buy_score", sig.BuyScore,
		"sell_score", sig.SellScore,
		"price", sig.Price,
	)
	e.pub.Publish(events.KindSignalStatus, sig)

	_, last, _ := series.Latest()
	e.exec.recordDecision(ctx, c.Trading.Symbol, sig, last)
	return sig, true
}

// Execute opens on BUY while flat and closes on SELL while long. Anything
// else leaves the position untouched and returns nil.
func (e *Engine) Execute(ctx context.Context, sig types.Signal, price float64) *types.Trade {
	if price <= 0 {
		return nil
	}
	c := e.cfg.Snapshot()
	p := decimal.NewFromFloat(price)

	var trade *types.Trade
	switch sig.Action {
	case types.ActionBuy:
		if !e.pm.open(p, e.now()) {
			return nil
		}
		trade = &types.Trade{Side: types.ActionBuy, Price: price}
	case types.ActionSell:
		entry, ok := e.pm.close()
		if !ok {
			return nil
		}
		trade = &types.Trade{Side: types.ActionSell, Price: price}
		if entry.Valid {
			pct := profitPct(entry.Decimal, p)
			trade.ProfitPct = &pct
		}
	default:
		return nil
	}

	e.exec.record(ctx, c.Trading.Symbol, trade.Side, price, trade.ProfitPct, reasonSignal, sentimentTag(e.sentiment.Current()))
	e.pub.Publish(events.KindTrade, *trade)
	return trade
}

// CheckStopConditions applies stop-loss then take-profit to a long with a
// known entry.
func (e *Engine) CheckStopConditions(ctx context.Context, price float64) *types.StopEvent {
	if price <= 0 {
		return nil
	}
	c := e.cfg.Snapshot()
	sm := newStopManager(c.Trading.StopLossPercent, c.Trading.TakeProfitPercent)

	ev, ok := e.pm.stopOut(decimal.NewFromFloat(price), sm)
	if !ok {
		return nil
	}

	logger.Risk(ctx, c.Trading.Symbol, string(ev.Kind), "price", ev.Price, "profit_pct", ev.ProfitPct)
	profit := ev.ProfitPct
	e.exec.record(ctx, c.Trading.Symbol, types.ActionSell, ev.Price, &profit, string(ev.Kind), "")
	e.pub.Publish(events.KindStopCondition, ev)
	return &ev
}

func (e *Engine) Position() types.Position { return e.pm.get() }

func (e *Engine) ObserveBalance(ctx context.Context, b types.Balance) {
	if e.pm.observe(b, e.now()) {
		logger.Info(ctx, "Held balance detected, position marked long with unknown entry",
			"asset", b.Asset,
			"free", b.Free,
		)
	}
}

func (e *Engine) Account() types.Balance { return e.pm.balance() }
