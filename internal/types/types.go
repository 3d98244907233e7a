package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar; Ts is the open time in Unix milliseconds.
type Candle struct {
	Ts                          int64
	Open, High, Low, Close, Vol float64
}

// Bar is a candle plus its indicator columns. Undefined values are NaN.
type Bar struct {
	Candle
	MAShort    float64 `json:"ma5"`
	MALong     float64 `json:"ma25"`
	RSI        float64 `json:"rsi"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_diff"`
	Volatility float64 `json:"volatility"`
}

// CandleSeries is regenerated wholesale on every refresh.
type CandleSeries struct {
	Symbol    string
	Interval  string
	Bars      []Bar
	Simulated bool
	FetchedAt time.Time
}

func (s *CandleSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Latest returns the last bar and the one before it.
func (s *CandleSeries) Latest() (prev, last Bar, ok bool) {
	if s.Len() < 2 {
		return Bar{}, Bar{}, false
	}
	return s.Bars[len(s.Bars)-2], s.Bars[len(s.Bars)-1], true
}

type Action string

const (
	ActionBuy     Action = "BUY"
	ActionSell    Action = "SELL"
	ActionNeutral Action = "NEUTRAL"
)

// Signal is an engine decision; it is emitted as an event and never stored.
type Signal struct {
	Action         Action  `json:"action"`
	Confidence     int     `json:"confidence"`
	Recommendation string  `json:"recommendation"`
	BuyScore       float64 `json:"buy_score"`
	SellScore      float64 `json:"sell_score"`
	Price          float64 `json:"price"`
}

const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Sentiment is the (summary, label, score) result of news analysis.
type Sentiment struct {
	Summary string  `json:"summary"`
	Label   string  `json:"label"`
	Score   float64 `json:"score"`
}

// Article is one keyword-matching RSS entry.
type Article struct {
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	Published time.Time `json:"published"`
}

type PriceSample struct {
	Time  time.Time
	Price decimal.Decimal
}

type PositionSide string

const (
	SideFlat PositionSide = "FLAT"
	SideLong PositionSide = "LONG"
)

// Position is Flat or Long. A Long opened from a balance reading has no
// entry (Entry.Valid == false) and is not subject to stop conditions.
type Position struct {
	Side     PositionSide        `json:"side"`
	Entry    decimal.NullDecimal `json:"entry"`
	OpenedAt time.Time           `json:"opened_at"`
}

func (p Position) IsLong() bool { return p.Side == SideLong }

type StopKind string

const (
	StopLoss   StopKind = "STOP_LOSS"
	TakeProfit StopKind = "TAKE_PROFIT"
)

type StopEvent struct {
	Kind      StopKind `json:"kind"`
	Price     float64  `json:"price"`
	ProfitPct float64  `json:"profit_pct"`
}

// Trade is a simulated fill. ProfitPct is set on closes with a known entry.
type Trade struct {
	Side      Action   `json:"side"`
	Price     float64  `json:"price"`
	ProfitPct *float64 `json:"profit_pct,omitempty"`
}

type Balance struct {
	Asset string  `json:"asset"`
	Free  float64 `json:"free"`
	Value float64 `json:"value"`
}
