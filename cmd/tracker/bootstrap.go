package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"shell-tracker/internal/broker/binance"
	"shell-tracker/internal/broker/brokerobs"
	"shell-tracker/internal/engine"
	"shell-tracker/internal/engine/engineobs"
	"shell-tracker/internal/events"
	"shell-tracker/internal/interfaces"
	"shell-tracker/internal/llm/deepseek"
	"shell-tracker/internal/llm/llmobs"
	"shell-tracker/internal/llm/noop"
	"shell-tracker/internal/logger"
	"shell-tracker/internal/monitor"
	"shell-tracker/internal/news"
	"shell-tracker/internal/store"
	"shell-tracker/internal/trace"
	"shell-tracker/internal/tradelog"
)

// initializeSystem loads .env and sets up logging and tracing.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func shutdownSystem() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = trace.Shutdown(ctx)
	logger.Sync()
}

// app holds the wired components shared by every command.
type app struct {
	cfg     *store.Handle
	bus     *events.Bus
	market  interfaces.MarketData
	news    *news.Service
	engine  interfaces.SignalEngine
	journal *tradelog.Journal
	monitor *monitor.Monitor
}

func buildApp(ctx context.Context, configPath string) (*app, error) {
	c, created, err := store.LoadOrCreate(configPath)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", configPath)
		return nil, err
	}
	if created {
		logger.Info(ctx, "Wrote default configuration", "path", configPath)
	}

	a := &app{cfg: store.NewHandle(c), bus: events.NewBus()}
	a.market = initializeMarket(ctx, c, a.bus)
	a.news = initializeNews(ctx, a.cfg, c, a.bus)
	a.journal = tradelog.New(tradelog.DirFromEnv())
	compressOldLogs(ctx, a.journal)
	a.engine = engineobs.Wrap(engine.New(a.cfg, a.news, a.bus, engine.WithJournal(a.journal)))
	a.monitor = monitor.New(a.cfg, a.market, a.engine, a.bus, monitor.WithNews(a.news))
	return a, nil
}

func (a *app) close() {
	if a.monitor.Running() {
		a.monitor.Stop()
	}
	a.news.Close()
	a.bus.Close()
}

func initializeMarket(ctx context.Context, c *store.Config, bus *events.Bus) interfaces.MarketData {
	gw := binance.New(ctx, c.API.Binance, binance.WithErrorSink(bus.ReportError))
	if gw.Simulated() {
		bus.ReportError("gateway.init", errors.New("Binance API密钥未配置，将使用模拟数据"))
	}
	return brokerobs.Wrap(gw)
}

func initializeNews(ctx context.Context, h *store.Handle, c *store.Config, bus *events.Bus) *news.Service {
	var completer interfaces.Completer
	configured := c.API.News.DeepSeekAPIKey != ""
	if configured {
		completer = deepseek.New(c.API.News)
	} else {
		completer = noop.New()
		logger.Warn(ctx, "DeepSeek API key not configured - sentiment analysis disabled")
	}
	analyzer := news.NewAnalyzer(llmobs.Wrap(completer), configured, news.WithAnalyzerErrorSink(bus.ReportError))
	return news.NewService(h, analyzer, bus)
}

// summarizeTrades writes the daily trade summary CSV after a session.
func (a *app) summarizeTrades(ctx context.Context) {
	path, err := a.journal.Summarize(time.Now())
	switch {
	case err != nil:
		logger.Warn(ctx, "Failed to write trade summary", "error", err)
	case path != "":
		logger.Info(ctx, "Trade summary written", "path", path)
	}
}

// compressOldLogs gzips journal files past TRACKER_LOG_RETENTION_DAYS.
func compressOldLogs(ctx context.Context, j *tradelog.Journal) {
	v := os.Getenv("TRACKER_LOG_RETENTION_DAYS")
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn(ctx, "Invalid TRACKER_LOG_RETENTION_DAYS", "value", v)
		return
	}
	if err := j.CompressOlder(n); err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
	}
}

// logEvents mirrors a bus subscription onto the structured log until the
// channel closes.
func logEvents(ctx context.Context, ch <-chan events.Event) {
	for ev := range ch {
		switch d := ev.Data.(type) {
		case events.PriceUpdate:
			logger.Info(ctx, "Price", "price", d.Price, "pct_change", fmt.Sprintf("%.2f%%", d.PctChange))
		case events.Alert:
			logger.Warn(ctx, d.Message, "type", d.Type)
		case events.ChartData:
			logger.Debug(ctx, "Candles refreshed", "bars", d.Series.Len(), "simulated", d.Series != nil && d.Series.Simulated)
		case events.Failure:
			logger.Warn(ctx, d.Message, "source", d.Source)
		case events.Started:
			logger.Info(ctx, "Session started", "session_id", d.SessionID)
		default:
			if ev.Kind == events.KindStopped {
				logger.Info(ctx, "Session stopped")
				continue
			}
			logger.Debug(ctx, "Event", "kind", ev.Kind, "data", ev.Data)
		}
	}
}
