// Package monitor runs the polling loop: price, stop conditions, candles,
// signals, balance and news refresh, publishing everything on the bus.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"shell-tracker/internal/events"
	"shell-tracker/internal/interfaces"
	"shell-tracker/internal/logger"
	"shell-tracker/internal/pricelog"
	"shell-tracker/internal/report"
	"shell-tracker/internal/store"
	"shell-tracker/internal/trace"
	"shell-tracker/internal/types"
)

const (
	stopTimeout         = 2 * time.Second
	candleRefreshMax    = time.Minute
	newsRefreshInterval = time.Hour
)

// NewsFeed is the news side the loop needs: refresh plus the latest result.
type NewsFeed interface {
	interfaces.NewsProcessor
	interfaces.SentimentSource
}

type Monitor struct {
	cfg    *store.Handle
	market interfaces.MarketData
	engine interfaces.SignalEngine
	news   NewsFeed
	pub    events.Publisher
	now    func() time.Time
	pause  func(context.Context, time.Duration) bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	session *Session

	bg              sync.WaitGroup
	balanceInFlight atomic.Bool
}

type Option func(*Monitor)

// WithNews enables the initial and hourly news refresh.
func WithNews(n NewsFeed) Option {
	return func(m *Monitor) { m.news = n }
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func New(cfg *store.Handle, market interfaces.MarketData, engine interfaces.SignalEngine, pub events.Publisher, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:    cfg,
		market: market,
		engine: engine,
		pub:    pub,
		now:    time.Now,
		pause:  sleep,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins a new session, stopping any running one first.
func (m *Monitor) Start(ctx context.Context, duration, interval time.Duration) error {
	if duration <= 0 || interval <= 0 {
		return fmt.Errorf("invalid monitoring window: duration %s, interval %s", duration, interval)
	}
	if m.stopRunning() {
		m.pub.Publish(events.KindStopped, nil)
	}

	c := m.cfg.Snapshot()
	sess := newSession(m.now())
	plog, err := pricelog.Open(c.Monitoring.PriceLogDir, sess.StartedAt)
	if err != nil {
		m.pub.ReportError("monitor.pricelog", err)
	}

	ctx, cancel := context.WithCancel(trace.WithSession(ctx, sess.ID, c.Trading.Symbol))
	done := make(chan struct{})

	m.mu.Lock()
	m.running = true
	m.cancel = cancel
	m.done = done
	m.session = sess
	m.mu.Unlock()

	go m.loop(ctx, sess, plog, duration, interval, done)

	if c.API.News.Enabled && m.news != nil {
		m.goBackground(ctx, "monitor.news", func(ctx context.Context) { m.news.FetchAndProcess(ctx) })
	}

	logger.Info(ctx, "Monitoring started",
		"symbol", c.Trading.Symbol,
		"duration", duration.String(),
		"interval", interval.String(),
		"price_log", logPath(plog),
	)
	m.pub.Publish(events.KindStarted, events.Started{
		SessionID:       sess.ID,
		DurationMinutes: int(duration.Minutes()),
		IntervalSeconds: int(interval.Seconds()),
	})
	return nil
}

// Stop ends the running session, waiting a bounded time for the loop and its
// background tasks, then publishes stopped. With nothing running only the
// event is published.
func (m *Monitor) Stop() {
	m.stopRunning()
	m.pub.Publish(events.KindStopped, nil)
}

// stopRunning cancels the live session, if any, and reports whether there
// was one.
func (m *Monitor) stopRunning() bool {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return false
	}
	m.running = false
	m.cancel()
	done := m.done
	m.mu.Unlock()

	select {
	case <-done:
	case <-time.After(stopTimeout):
		logger.Warn(context.Background(), "Monitoring loop did not exit in time")
	}
	m.waitBackground(stopTimeout)
	return true
}

// Wait blocks until the current session's loop has exited.
func (m *Monitor) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Snapshot copies the current (or last) session. ok is false before the
// first Start.
func (m *Monitor) Snapshot() (Snapshot, bool) {
	m.mu.Lock()
	sess, running := m.session, m.running
	m.mu.Unlock()
	if sess == nil {
		return Snapshot{}, false
	}
	snap := sess.snapshot()
	snap.Running = running
	return snap, true
}

// ReportInput gathers everything a status report needs. The price is
// fetched fresh, as is a candle series when the session has none yet.
func (m *Monitor) ReportInput(ctx context.Context) report.Input {
	c := m.cfg.Snapshot()
	in := report.Input{
		Symbol:   c.Trading.Symbol,
		Running:  m.Running(),
		Position: m.engine.Position(),
		Now:      m.now(),
	}
	if p, err := m.market.LatestPrice(ctx, c.Trading.Symbol); err == nil {
		in.Price = p
	}
	if snap, ok := m.Snapshot(); ok {
		in.Samples = snap.Samples
		in.Candles = snap.Candles
	}
	if in.Candles == nil {
		if series, err := m.market.Candles(ctx, c.Trading.Symbol, c.Trading.Interval); err == nil {
			in.Candles = series
		}
	}
	if m.news != nil {
		in.Sentiment, in.HasSentiment = m.news.Current()
		in.Digest = m.news.LastDigest()
	}
	return in
}

// finish marks a naturally completed session as stopped. It reports false
// when Stop already did.
func (m *Monitor) finish(done chan struct{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.done != done {
		return false
	}
	m.running = false
	m.cancel()
	return true
}

// goBackground runs fn as a tracked task. Panics are reported, not propagated.
func (m *Monitor) goBackground(ctx context.Context, source string, fn func(context.Context)) {
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.pub.ReportError(source, fmt.Errorf("panic: %v", r))
			}
		}()
		fn(ctx)
	}()
}

func (m *Monitor) waitBackground(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		m.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn(context.Background(), "Background tasks still running after stop")
	}
}

func logPath(l *pricelog.Log) string {
	if l == nil {
		return ""
	}
	return l.Path()
}

func (m *Monitor) refreshBalance(ctx context.Context, asset string) {
	if !m.balanceInFlight.CompareAndSwap(false, true) {
		return
	}
	m.goBackground(ctx, "monitor.balance", func(ctx context.Context) {
		defer m.balanceInFlight.Store(false)
		b, err := m.market.Balance(ctx, asset)
		if err != nil {
			if !isQuiet(err) {
				m.pub.ReportError("monitor.balance", fmt.Errorf("检查账户余额失败: %w", err))
			}
			return
		}
		m.engine.ObserveBalance(ctx, b)
		m.pub.Publish(events.KindBalance, b)
	})
}

// isQuiet is true for failures already announced once at startup, and for
// cancellation.
func isQuiet(err error) bool {
	return errors.Is(err, types.ErrNotConfigured) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
