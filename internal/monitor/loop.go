package monitor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"shell-tracker/internal/events"
	"shell-tracker/internal/logger"
	"shell-tracker/internal/pricelog"
	"shell-tracker/internal/store"
	"shell-tracker/internal/types"
)

// loopState is owned by the loop goroutine.
type loopState struct {
	prev      float64
	hasPrev   bool
	lastKline time.Time
	lastNews  time.Time
}

func (m *Monitor) loop(ctx context.Context, sess *Session, plog *pricelog.Log, duration, interval time.Duration, done chan struct{}) {
	defer close(done)
	defer func() {
		if plog == nil {
			return
		}
		if plog.Retired() {
			logger.Warn(context.Background(), "Price log was retired after a write failure", "session_id", sess.ID, "path", plog.Path())
		}
		_ = plog.Close()
	}()

	start := m.now()
	end := start.Add(duration)
	st := &loopState{lastKline: start.Add(-candleRefreshMax), lastNews: start}

	for iter := 1; ctx.Err() == nil && m.now().Before(end); iter++ {
		c := m.cfg.Snapshot()
		now := m.now()
		m.safeTick(ctx, c, st, sess, plog, iter, interval, now)
		m.maybeRefreshNews(ctx, c, st, now)
		if !m.pause(ctx, interval) {
			break
		}
	}

	if ctx.Err() != nil {
		logger.Info(context.Background(), "Monitoring loop stopped", "session_id", sess.ID)
		return
	}

	c := m.cfg.Snapshot()
	m.refreshCandles(ctx, c, sess)
	if m.finish(done) {
		logger.Info(ctx, "Monitoring window elapsed", "samples", len(sess.snapshot().Samples))
		m.pub.Publish(events.KindStopped, nil)
	}
}

// safeTick runs tick, turning a panic into an error event so the loop
// carries on with the next iteration.
func (m *Monitor) safeTick(ctx context.Context, c store.Config, st *loopState, sess *Session, plog *pricelog.Log, iter int, interval time.Duration, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			m.pub.ReportError("monitor.loop", fmt.Errorf("监控过程中发生错误: %v", r))
		}
	}()
	m.tick(ctx, c, st, sess, plog, iter, interval, now)
}

// tick runs one polling step. It returns early after a stop exit or a buy.
func (m *Monitor) tick(ctx context.Context, c store.Config, st *loopState, sess *Session, plog *pricelog.Log, iter int, interval time.Duration, now time.Time) {
	symbol := c.Trading.Symbol
	price, err := m.market.LatestPrice(ctx, symbol)
	if err != nil || price <= 0 {
		if err != nil && !isQuiet(err) {
			m.pub.ReportError("monitor.price", err)
		}
		return
	}

	sample := types.PriceSample{Time: now, Price: decimal.NewFromFloat(price)}
	sess.record(sample)
	if plog != nil {
		if err := plog.Append(sample); err != nil {
			m.pub.ReportError("monitor.pricelog", err)
		}
	}

	var pct float64
	if st.hasPrev && st.prev > 0 {
		pct = (price - st.prev) / st.prev * 100
	}
	m.pub.Publish(events.KindPriceUpdate, events.PriceUpdate{Price: price, PctChange: pct})

	alerted := st.hasPrev && math.Abs(pct) >= c.Monitoring.PriceAlertThreshold
	if alerted {
		direction := "上涨"
		if pct < 0 {
			direction = "下跌"
		}
		m.pub.Publish(events.KindAlert, events.Alert{
			Type:      events.AlertPriceChange,
			Message:   fmt.Sprintf("%s 价格在过去 %d秒 内%s %.2f%%", symbol, int(interval.Seconds()), direction, math.Abs(pct)),
			PctChange: pct,
		})
	}

	st.prev, st.hasPrev = price, true

	if m.engine.Position().IsLong() {
		if ev := m.engine.CheckStopConditions(ctx, price); ev != nil {
			m.refreshCandles(ctx, c, sess)
			return
		}
	}

	every := 1
	if n := int(time.Minute / interval); n > 1 {
		every = n
	}
	if iter%every == 0 || alerted || now.Sub(st.lastKline) >= candleRefreshMax {
		if series := m.refreshCandles(ctx, c, sess); series != nil {
			st.lastKline = now
			if !m.engine.Position().IsLong() {
				if sig, ok := m.engine.Evaluate(ctx, series); ok && sig.Action == types.ActionBuy {
					m.engine.Execute(ctx, sig, price)
					m.refreshCandles(ctx, c, sess)
					return
				}
			}
		}
	}

	m.refreshBalance(ctx, c.BaseAsset())
}

// refreshCandles fetches the series, stores it on the session and publishes
// it for the chart. nil means nothing usable came back.
func (m *Monitor) refreshCandles(ctx context.Context, c store.Config, sess *Session) *types.CandleSeries {
	series, err := m.market.Candles(ctx, c.Trading.Symbol, c.Trading.Interval)
	if err != nil {
		if !isQuiet(err) {
			m.pub.ReportError("monitor.candles", err)
		}
		return nil
	}
	if series.Len() == 0 {
		return nil
	}
	sess.setCandles(series)
	m.pub.Publish(events.KindChartData, events.ChartData{Series: series})
	return series
}

func (m *Monitor) maybeRefreshNews(ctx context.Context, c store.Config, st *loopState, now time.Time) {
	if m.news == nil || !c.API.News.Enabled || now.Sub(st.lastNews) < newsRefreshInterval {
		return
	}
	st.lastNews = now
	m.goBackground(ctx, "monitor.news", func(ctx context.Context) { m.news.FetchAndProcess(ctx) })
}

// sleep waits d or until ctx is done. It reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
