package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"shell-tracker/internal/types"
)

// Session is one run of the monitoring loop. The loop writes it; the status
// endpoints read copies through Snapshot.
type Session struct {
	ID        string
	StartedAt time.Time

	mu      sync.RWMutex
	samples []types.PriceSample
	high    decimal.Decimal
	low     decimal.Decimal
	candles *types.CandleSeries
}

func newSession(now time.Time) *Session {
	return &Session{ID: uuid.NewString(), StartedAt: now}
}

func (s *Session) record(sample types.PriceSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 || sample.Price.GreaterThan(s.high) {
		s.high = sample.Price
	}
	if len(s.samples) == 0 || sample.Price.LessThan(s.low) {
		s.low = sample.Price
	}
	s.samples = append(s.samples, sample)
}

func (s *Session) setCandles(series *types.CandleSeries) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles = series
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID        string              `json:"id"`
	Running   bool                `json:"running"`
	StartedAt time.Time           `json:"started_at"`
	Samples   []types.PriceSample `json:"-"`
	High      decimal.Decimal     `json:"high"`
	Low       decimal.Decimal     `json:"low"`
	LastPrice decimal.Decimal     `json:"last_price"`
	Candles   *types.CandleSeries `json:"-"`
}

func (s *Session) snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		ID:        s.ID,
		StartedAt: s.StartedAt,
		Samples:   append([]types.PriceSample(nil), s.samples...),
		High:      s.high,
		Low:       s.low,
		Candles:   s.candles,
	}
	if n := len(s.samples); n > 0 {
		snap.LastPrice = s.samples[n-1].Price
	}
	return snap
}
