package binance

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"shell-tracker/internal/ta"
	"shell-tracker/internal/types"
)

const (
	SimSeedPrice  = 1.2345
	SimPriceDrift = 0.005

	simCandleBase  = 1.5
	simCandleDrift = 0.02
	simCandleMin   = 0.8
	simCandleMax   = 3.0
	simCandleStep  = 10 * time.Minute
	simCandleSpan  = 24 * time.Hour
)

// Simulator produces stand-in market data while the exchange is unreachable.
// Its price walk continues across calls for the life of the process.
type Simulator struct {
	mu   sync.Mutex
	rng  *rand.Rand
	last float64
}

func NewSimulator(rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{rng: rng}
}

// Price returns SimSeedPrice on first use, then a ±0.5% step from the
// previous simulated value.
func (s *Simulator) Price() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last == 0 {
		s.last = SimSeedPrice
		return s.last
	}
	change := s.uniform(-SimPriceDrift, SimPriceDrift)
	s.last *= 1 + change
	return s.last
}

// Candles builds a day of 10-minute bars ending at now, with indicators
// computed and backfilled.
func (s *Simulator) Candles(symbol, interval string, now time.Time) *types.CandleSeries {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := now.Add(-simCandleSpan)
	n := int(simCandleSpan/simCandleStep) + 1
	bars := make([]types.Bar, n)

	price := simCandleBase
	for i := range bars {
		price *= 1 + s.uniform(-simCandleDrift, simCandleDrift)
		price = math.Max(simCandleMin, math.Min(simCandleMax, price))

		open := price * 0.99
		if i > 0 {
			open = bars[i-1].Close
		}
		bars[i].Candle = types.Candle{
			Ts:    start.Add(time.Duration(i) * simCandleStep).UnixMilli(),
			Open:  open,
			Close: price,
			High:  math.Max(open, price) * (1 + s.uniform(0, 0.01)),
			Low:   math.Min(open, price) * (1 - s.uniform(0, 0.01)),
			Vol:   s.uniform(1000, 10000),
		}
	}

	ta.Annotate(bars)
	ta.Backfill(bars)

	return &types.CandleSeries{
		Symbol:    symbol,
		Interval:  interval,
		Bars:      bars,
		Simulated: true,
		FetchedAt: now,
	}
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}
