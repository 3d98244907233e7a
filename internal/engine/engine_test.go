package engine

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shell-tracker/internal/events"
	"shell-tracker/internal/store"
	"shell-tracker/internal/tradelog"
	"shell-tracker/internal/types"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(kind events.Kind, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events.Event{Kind: kind, Data: data})
}

func (r *recorder) ReportError(string, error) {}

func (r *recorder) of(kind events.Kind) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e.Data)
		}
	}
	return out
}

type fixedSentiment struct {
	s  types.Sentiment
	ok bool
}

func (f fixedSentiment) Current() (types.Sentiment, bool) { return f.s, f.ok }

func testConfig(mutate func(*store.Config)) *store.Handle {
	c := store.Default()
	c.Trading.SentimentInfluenceEnabled = false
	if mutate != nil {
		mutate(c)
	}
	return store.NewHandle(c)
}

func filler() types.Bar {
	return types.Bar{Candle: types.Candle{Close: 1}, MAShort: 1, MALong: 1, RSI: 50, MACD: 0, MACDSignal: 0}
}

func series(n int, prev, last types.Bar) *types.CandleSeries {
	bars := make([]types.Bar, n)
	for i := range bars {
		bars[i] = filler()
	}
	bars[n-2], bars[n-1] = prev, last
	return &types.CandleSeries{Symbol: "SHELLUSDT", Bars: bars}
}

// crossUp has MA5 and MACD both crossing above their references with RSI below 50.
func crossUp() (prev, last types.Bar) {
	prev = types.Bar{Candle: types.Candle{Close: 1.1}, MAShort: 1.0, MALong: 1.1, RSI: 40, MACD: -0.01, MACDSignal: 0}
	last = types.Bar{Candle: types.Candle{Close: 1.2}, MAShort: 1.2, MALong: 1.1, RSI: 45, MACD: 0.02, MACDSignal: 0.01}
	return
}

func crossDown() (prev, last types.Bar) {
	prev = types.Bar{Candle: types.Candle{Close: 1.3}, MAShort: 1.2, MALong: 1.1, RSI: 60, MACD: 0.02, MACDSignal: 0.01}
	last = types.Bar{Candle: types.Candle{Close: 1.0}, MAShort: 1.0, MALong: 1.1, RSI: 65, MACD: -0.01, MACDSignal: 0}
	return
}

func TestEvaluateTechnicalBuy(t *testing.T) {
	rec := &recorder{}
	e := New(testConfig(nil), nil, rec)

	prev, last := crossUp()
	sig, ok := e.Evaluate(context.Background(), series(30, prev, last))
	require.True(t, ok)
	assert.Equal(t, types.ActionBuy, sig.Action)
	assert.InDelta(t, 1.0, sig.BuyScore, 1e-12)
	assert.Equal(t, 50, sig.Confidence)
	assert.Equal(t, "考虑分批买入，止损参考 1.1400", sig.Recommendation)
	assert.Len(t, rec.of(events.KindSignalStatus), 1)
}

func TestEvaluateCrossoverWithoutRSIIsNotBuy(t *testing.T) {
	prev, last := crossUp()
	last.RSI = 55
	e := New(testConfig(nil), nil, &recorder{})

	sig, ok := e.Evaluate(context.Background(), series(30, prev, last))
	require.True(t, ok)
	assert.Equal(t, types.ActionNeutral, sig.Action)
	assert.Equal(t, recNeutral, sig.Recommendation)
	assert.Equal(t, 100, sig.Confidence)
}

func TestEvaluateTechnicalSell(t *testing.T) {
	e := New(testConfig(nil), nil, &recorder{})

	prev, last := crossDown()
	sig, ok := e.Evaluate(context.Background(), series(30, prev, last))
	require.True(t, ok)
	assert.Equal(t, types.ActionSell, sig.Action)
	assert.InDelta(t, -1.0, sig.SellScore, 1e-12)
	assert.Equal(t, 50, sig.Confidence)
	assert.Equal(t, "考虑减仓或观望，止盈参考 1.1000", sig.Recommendation)
}

func TestEvaluateSentimentBlend(t *testing.T) {
	tests := []struct {
		name       string
		bars       func() (types.Bar, types.Bar)
		score      float64
		weight     float64
		action     types.Action
		confidence int
	}{
		{"tech buy boosted", crossUp, 1.0, 0.5, types.ActionBuy, 37},
		{"sentiment alone buys", func() (types.Bar, types.Bar) { return filler(), filler() }, 1.0, 1.0, types.ActionBuy, 0},
		{"sentiment alone below threshold", func() (types.Bar, types.Bar) { return filler(), filler() }, 1.0, 0.5, types.ActionNeutral, 50},
		{"negative sentiment alone stays neutral", func() (types.Bar, types.Bar) { return filler(), filler() }, -1.0, 1.0, types.ActionNeutral, 20},
		{"positive sentiment on a tech sell scores the buy side", crossDown, 0.5, 1.0, types.ActionSell, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(func(c *store.Config) {
				c.Trading.SentimentInfluenceEnabled = true
				c.Trading.SentimentInfluenceWeight = tt.weight
			})
			src := fixedSentiment{s: types.Sentiment{Label: types.SentimentPositive, Score: tt.score}, ok: true}
			e := New(cfg, src, &recorder{})

			prev, last := tt.bars()
			sig, ok := e.Evaluate(context.Background(), series(30, prev, last))
			require.True(t, ok)
			assert.Equal(t, tt.action, sig.Action)
			assert.Equal(t, tt.confidence, sig.Confidence)
		})
	}
}

func TestEvaluateSentimentIgnoredWhenDisabled(t *testing.T) {
	src := fixedSentiment{s: types.Sentiment{Label: types.SentimentPositive, Score: 1}, ok: true}
	e := New(testConfig(nil), src, &recorder{})

	sig, ok := e.Evaluate(context.Background(), series(30, filler(), filler()))
	require.True(t, ok)
	assert.Equal(t, types.ActionNeutral, sig.Action)
	assert.Zero(t, sig.BuyScore)
}

func TestEvaluateGating(t *testing.T) {
	prev, last := crossUp()
	nanPrev := prev
	nanPrev.MACD = math.NaN()
	nanLast := last
	nanLast.MALong = math.NaN()

	tests := []struct {
		name   string
		series *types.CandleSeries
	}{
		{"nil series", nil},
		{"25 rows", series(25, prev, last)},
		{"prev macd undefined", series(30, nanPrev, last)},
		{"latest ma25 undefined", series(30, prev, nanLast)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			e := New(testConfig(nil), nil, rec)

			_, ok := e.Evaluate(context.Background(), tt.series)
			assert.False(t, ok)
			assert.Empty(t, rec.events)
			assert.Equal(t, types.SideFlat, e.Position().Side)
		})
	}
}

func TestBuyOpensPositionAtTradePrice(t *testing.T) {
	rec := &recorder{}
	e := New(testConfig(nil), nil, rec)
	ctx := context.Background()

	prev, last := crossUp()
	sig, ok := e.Evaluate(ctx, series(30, prev, last))
	require.True(t, ok)
	trade := e.Execute(ctx, sig, 1.2345)
	require.NotNil(t, trade)

	assert.Equal(t, types.ActionBuy, trade.Side)
	pos := e.Position()
	assert.Equal(t, types.SideLong, pos.Side)
	require.True(t, pos.Entry.Valid)
	assert.True(t, pos.Entry.Decimal.Equal(decimal.RequireFromString("1.2345")))
	assert.Len(t, rec.of(events.KindTrade), 1)

	assert.Nil(t, e.Execute(ctx, sig, 1.3), "second BUY while long")
}

func TestStopLossClosesPosition(t *testing.T) {
	rec := &recorder{}
	e := New(testConfig(func(c *store.Config) { c.Trading.StopLossPercent = 5 }), nil, rec)
	ctx := context.Background()

	require.NotNil(t, e.Execute(ctx, types.Signal{Action: types.ActionBuy}, 100))
	assert.Nil(t, e.CheckStopConditions(ctx, 96))

	ev := e.CheckStopConditions(ctx, 94)
	require.NotNil(t, ev)
	assert.Equal(t, types.StopLoss, ev.Kind)
	assert.InDelta(t, -6.0, ev.ProfitPct, 1e-9)
	assert.Equal(t, 94.0, ev.Price)
	assert.Equal(t, types.SideFlat, e.Position().Side)
	assert.Len(t, rec.of(events.KindStopCondition), 1)

	assert.Nil(t, e.CheckStopConditions(ctx, 50))
}

func TestTakeProfitClosesPosition(t *testing.T) {
	e := New(testConfig(func(c *store.Config) { c.Trading.TakeProfitPercent = 10 }), nil, &recorder{})
	ctx := context.Background()

	require.NotNil(t, e.Execute(ctx, types.Signal{Action: types.ActionBuy}, 100))
	assert.Nil(t, e.CheckStopConditions(ctx, 109.9))
	ev := e.CheckStopConditions(ctx, 110)
	require.NotNil(t, ev)
	assert.Equal(t, types.TakeProfit, ev.Kind)
	assert.InDelta(t, 10.0, ev.ProfitPct, 1e-9)
}

func TestStopLossCheckedBeforeTakeProfit(t *testing.T) {
	// a negative stop percent puts the stop level above the target
	sm := newStopManager(-50, 10)
	entry := decimal.NewFromInt(100)
	price := decimal.NewFromInt(120)
	require.True(t, price.LessThanOrEqual(sm.stopLossPrice(entry)))
	require.True(t, price.GreaterThanOrEqual(sm.takeProfitPrice(entry)))

	kind, hit := sm.check(entry, price)
	assert.True(t, hit)
	assert.Equal(t, types.StopLoss, kind)
}

func TestSellClosesWithProfit(t *testing.T) {
	rec := &recorder{}
	e := New(testConfig(nil), nil, rec)
	ctx := context.Background()

	assert.Nil(t, e.Execute(ctx, types.Signal{Action: types.ActionSell}, 1.0), "SELL while flat")
	require.NotNil(t, e.Execute(ctx, types.Signal{Action: types.ActionBuy}, 2.0))
	trade := e.Execute(ctx, types.Signal{Action: types.ActionSell}, 2.5)
	require.NotNil(t, trade)
	require.NotNil(t, trade.ProfitPct)
	assert.InDelta(t, 25.0, *trade.ProfitPct, 1e-9)
	assert.Equal(t, types.SideFlat, e.Position().Side)
}

func TestExecuteIgnoresNeutralAndBadPrice(t *testing.T) {
	e := New(testConfig(nil), nil, &recorder{})
	ctx := context.Background()
	assert.Nil(t, e.Execute(ctx, types.Signal{Action: types.ActionNeutral}, 1))
	assert.Nil(t, e.Execute(ctx, types.Signal{Action: types.ActionBuy}, 0))
	assert.Equal(t, types.SideFlat, e.Position().Side)
}

func TestHeldBalanceMarksLongWithoutEntry(t *testing.T) {
	e := New(testConfig(nil), nil, &recorder{})
	ctx := context.Background()

	e.ObserveBalance(ctx, types.Balance{Asset: "SHELL", Free: 0.05})
	assert.Equal(t, types.SideFlat, e.Position().Side)

	e.ObserveBalance(ctx, types.Balance{Asset: "SHELL", Free: 12, Value: 15})
	pos := e.Position()
	assert.Equal(t, types.SideLong, pos.Side)
	assert.False(t, pos.Entry.Valid)
	assert.Equal(t, 15.0, e.Account().Value)

	assert.Nil(t, e.CheckStopConditions(ctx, 0.0001), "no entry, no stop")
	assert.Nil(t, e.Execute(ctx, types.Signal{Action: types.ActionBuy}, 1))

	trade := e.Execute(ctx, types.Signal{Action: types.ActionSell}, 1)
	require.NotNil(t, trade)
	assert.Nil(t, trade.ProfitPct)
}

func TestHeldBalanceKeepsKnownEntry(t *testing.T) {
	e := New(testConfig(nil), nil, &recorder{})
	ctx := context.Background()

	require.NotNil(t, e.Execute(ctx, types.Signal{Action: types.ActionBuy}, 100))
	e.ObserveBalance(ctx, types.Balance{Free: 50})
	assert.True(t, e.Position().Entry.Valid)
}

func TestPositionExclusivityUnderRandomEvents(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	rec := &recorder{}
	e := New(testConfig(nil), nil, rec)
	ctx := context.Background()

	open := false
	for i := 0; i < 2000; i++ {
		price := 50 + rng.Float64()*100
		switch rng.Intn(4) {
		case 0:
			trade := e.Execute(ctx, types.Signal{Action: types.ActionBuy}, price)
			if open {
				require.Nil(t, trade, "BUY while long at step %d", i)
			} else {
				require.NotNil(t, trade)
				open = true
			}
		case 1:
			trade := e.Execute(ctx, types.Signal{Action: types.ActionSell}, price)
			if !open {
				require.Nil(t, trade, "SELL while flat at step %d", i)
			} else {
				require.NotNil(t, trade)
				open = false
			}
		default:
			ev := e.CheckStopConditions(ctx, price)
			if ev != nil {
				require.True(t, open, "stop while flat at step %d", i)
				open = false
			}
		}
		require.Equal(t, open, e.Position().IsLong())
	}

	buys, closes := 0, len(rec.of(events.KindStopCondition))
	for _, d := range rec.of(events.KindTrade) {
		if d.(types.Trade).Side == types.ActionBuy {
			buys++
		} else {
			closes++
		}
	}
	assert.Contains(t, []int{0, 1}, buys-closes)
}

func TestJournalRecordsFillsAndDecisions(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.Local)
	j := tradelog.New(dir)
	e := New(testConfig(nil), nil, &recorder{}, WithJournal(j), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	prev, last := crossUp()
	sig, ok := e.Evaluate(ctx, series(30, prev, last))
	require.True(t, ok)
	require.NotNil(t, e.Execute(ctx, sig, 1.2))

	day := time.Now().Format("2006-01-02") + ".txt"
	_, err := os.Stat(filepath.Join(dir, day))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "decisions", day))
	assert.NoError(t, err)
}
