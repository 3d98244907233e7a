package web

import (
	"math"

	"github.com/goccy/go-json"

	"shell-tracker/internal/events"
	"shell-tracker/internal/types"
)

// chartBar is a Bar with undefined indicators as null.
type chartBar struct {
	Ts         int64    `json:"ts"`
	Open       float64  `json:"open"`
	High       float64  `json:"high"`
	Low        float64  `json:"low"`
	Close      float64  `json:"close"`
	Volume     float64  `json:"volume"`
	MAShort    *float64 `json:"ma5"`
	MALong     *float64 `json:"ma25"`
	RSI        *float64 `json:"rsi"`
	MACD       *float64 `json:"macd"`
	MACDSignal *float64 `json:"macd_signal"`
	MACDHist   *float64 `json:"macd_diff"`
	Volatility *float64 `json:"volatility"`
}

type chartSeries struct {
	Symbol    string     `json:"symbol"`
	Interval  string     `json:"interval"`
	Simulated bool       `json:"simulated"`
	Bars      []chartBar `json:"bars"`
}

func encodeEvent(ev events.Event) ([]byte, error) {
	if cd, ok := ev.Data.(events.ChartData); ok {
		ev.Data = newChartSeries(cd.Series)
	}
	return json.Marshal(ev)
}

func newChartSeries(s *types.CandleSeries) chartSeries {
	out := chartSeries{Bars: []chartBar{}}
	if s == nil {
		return out
	}
	out.Symbol, out.Interval, out.Simulated = s.Symbol, s.Interval, s.Simulated
	out.Bars = make([]chartBar, len(s.Bars))
	for i, b := range s.Bars {
		out.Bars[i] = chartBar{
			Ts:         b.Ts,
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     b.Vol,
			MAShort:    num(b.MAShort),
			MALong:     num(b.MALong),
			RSI:        num(b.RSI),
			MACD:       num(b.MACD),
			MACDSignal: num(b.MACDSignal),
			MACDHist:   num(b.MACDHist),
			Volatility: num(b.Volatility),
		}
	}
	return out
}

func num(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
