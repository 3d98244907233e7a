package binance

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	"shell-tracker/internal/interfaces"
	"shell-tracker/internal/logger"
	"shell-tracker/internal/store"
	"shell-tracker/internal/ta"
	"shell-tracker/internal/types"
)

const klinesPageLimit = 100

// maxKlinePages bounds pagination for the longest lookback (1m over a day is 15 pages).
const maxKlinePages = 20

// Gateway reads prices, candles and balances from Binance spot. Any failure
// falls back to the Simulator; the cause goes to the error sink.
type Gateway struct {
	client  *gobinance.Client
	limiter *rate.Limiter
	sim     *Simulator
	onError func(source string, err error)
	now     func() time.Time
}

var _ interfaces.MarketData = (*Gateway)(nil)

type Option func(*Gateway)

// WithErrorSink receives every fallback cause (usually events.Bus.ReportError).
func WithErrorSink(fn func(source string, err error)) Option {
	return func(g *Gateway) {
		if fn != nil {
			g.onError = fn
		}
	}
}

func WithRand(rng *rand.Rand) Option {
	return func(g *Gateway) {
		g.sim = NewSimulator(rng)
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// New builds a gateway. Without both API key and secret it runs simulated.
func New(ctx context.Context, cfg store.BinanceConfig, opts ...Option) *Gateway {
	g := &Gateway{
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		onError: func(string, error) {},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.sim == nil {
		g.sim = NewSimulator(nil)
	}

	if cfg.APIKey == "" || cfg.APISecret == "" {
		logger.Warn(ctx, "Binance API key not configured, using simulated market data")
		return g
	}

	c := gobinance.NewClient(cfg.APIKey, cfg.APISecret)
	c.HTTPClient = &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	g.client = c
	return g
}

// Simulated reports whether the gateway has no exchange client.
func (g *Gateway) Simulated() bool { return g.client == nil }

func (g *Gateway) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	if g.client == nil {
		return g.sim.Price(), nil
	}
	price, err := g.fetchPrice(ctx, symbol)
	if err != nil {
		g.onError("gateway.price", fmt.Errorf("failed to fetch latest price, using simulated data: %w", err))
		return g.sim.Price(), nil
	}
	return price, nil
}

func (g *Gateway) fetchPrice(ctx context.Context, symbol string) (float64, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	prices, err := g.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range prices {
		if p.Symbol == symbol {
			return strconv.ParseFloat(p.Price, 64)
		}
	}
	return 0, fmt.Errorf("no ticker for %s", symbol)
}

func (g *Gateway) Candles(ctx context.Context, symbol, interval string) (*types.CandleSeries, error) {
	now := g.now()
	if g.client == nil {
		return g.sim.Candles(symbol, interval, now), nil
	}

	interval = NormalizeInterval(interval)
	bars, err := g.fetchKlines(ctx, symbol, interval, now.Add(-Lookback(interval)))
	if err != nil {
		g.onError("gateway.candles", fmt.Errorf("failed to fetch klines, using simulated data: %w", err))
		return g.sim.Candles(symbol, interval, now), nil
	}
	if len(bars) < 2 {
		g.onError("gateway.candles", fmt.Errorf("%w: got %d rows", types.ErrInsufficientCandles, len(bars)))
		return g.sim.Candles(symbol, interval, now), nil
	}

	ta.Annotate(bars)
	logger.Debug(ctx, "Klines processed", "symbol", symbol, "interval", interval, "rows", len(bars))

	return &types.CandleSeries{
		Symbol:    symbol,
		Interval:  interval,
		Bars:      bars,
		FetchedAt: now,
	}, nil
}

// fetchKlines pages forward from start in blocks of 100 until the exchange
// runs out of bars. Rows with an unparsable close are dropped.
func (g *Gateway) fetchKlines(ctx context.Context, symbol, interval string, start time.Time) ([]types.Bar, error) {
	var bars []types.Bar
	startMs := start.UnixMilli()

	for page := 0; page < maxKlinePages; page++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		klines, err := g.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(startMs).
			Limit(klinesPageLimit).
			Do(ctx)
		if err != nil {
			return nil, err
		}
		for _, k := range klines {
			if b, ok := barFromKline(k); ok {
				bars = append(bars, b)
			}
		}
		if len(klines) < klinesPageLimit {
			break
		}
		startMs = klines[len(klines)-1].OpenTime + 1
	}
	return bars, nil
}

func barFromKline(k *gobinance.Kline) (types.Bar, bool) {
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return types.Bar{}, false
	}
	// other columns are coerced the same way; a bad one becomes zero
	parse := func(s string) float64 {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	return types.Bar{Candle: types.Candle{
		Ts:    k.OpenTime,
		Open:  parse(k.Open),
		High:  parse(k.High),
		Low:   parse(k.Low),
		Close: closePrice,
		Vol:   parse(k.Volume),
	}}, true
}

// Balance returns the free balance of asset and its value at the latest price.
func (g *Gateway) Balance(ctx context.Context, asset string) (types.Balance, error) {
	if g.client == nil {
		return types.Balance{Asset: asset}, fmt.Errorf("balance unavailable: %w", types.ErrNotConfigured)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return types.Balance{Asset: asset}, err
	}
	acct, err := g.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return types.Balance{Asset: asset}, fmt.Errorf("failed to fetch account: %w", err)
	}

	bal := types.Balance{Asset: asset}
	for _, b := range acct.Balances {
		if b.Asset != asset {
			continue
		}
		free, err := strconv.ParseFloat(b.Free, 64)
		if err != nil {
			return bal, fmt.Errorf("bad free balance %q: %w", b.Free, err)
		}
		bal.Free = free
		break
	}

	if price, err := g.LatestPrice(ctx, asset+"USDT"); err == nil {
		bal.Value = bal.Free * price
	}
	return bal, nil
}

var lookbacks = map[string]time.Duration{
	"1m":  24 * time.Hour,
	"3m":  2 * 24 * time.Hour,
	"5m":  3 * 24 * time.Hour,
	"15m": 5 * 24 * time.Hour,
	"30m": 7 * 24 * time.Hour,
	"1h":  14 * 24 * time.Hour,
	"2h":  14 * 24 * time.Hour,
	"4h":  30 * 24 * time.Hour,
	"1d":  90 * 24 * time.Hour,
}

// NormalizeInterval maps unknown intervals to 15m.
func NormalizeInterval(interval string) string {
	if _, ok := lookbacks[interval]; ok {
		return interval
	}
	return "15m"
}

// Lookback is how much history is requested for an interval.
func Lookback(interval string) time.Duration {
	return lookbacks[NormalizeInterval(interval)]
}
