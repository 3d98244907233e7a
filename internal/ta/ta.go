package ta

import (
	"math"

	"shell-tracker/internal/types"
)

// Series indicators return a slice aligned with the input. Positions
// without enough history hold NaN.

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func SMA(vals []float64, n int) []float64 {
	out := nanSeries(len(vals))
	if n <= 0 || len(vals) < n {
		return out
	}
	sum := 0.0
	for i, v := range vals {
		sum += v
		if i >= n {
			sum -= vals[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMA is an exponential average with alpha 2/(n+1) seeded on the first
// defined value. Leading NaNs are skipped and n observations are needed
// before a value is reported.
func EMA(vals []float64, n int) []float64 {
	return ewm(vals, 2.0/float64(n+1), n)
}

func ewm(vals []float64, alpha float64, minPeriods int) []float64 {
	out := nanSeries(len(vals))
	if minPeriods <= 0 {
		return out
	}
	var (
		avg  float64
		seen int
	)
	for i, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if seen == 0 {
			avg = v
		} else {
			avg = alpha*v + (1-alpha)*avg
		}
		seen++
		if seen >= minPeriods {
			out[i] = avg
		}
	}
	return out
}

// RSI uses Wilder smoothing (alpha 1/period). A window with no losses reads 100.
func RSI(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 || len(closes) < period {
		return out
	}
	up := make([]float64, len(closes))
	down := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			up[i] = d
		} else {
			down[i] = -d
		}
	}
	alpha := 1.0 / float64(period)
	avgUp := ewm(up, alpha, period)
	avgDown := ewm(down, alpha, period)
	for i := range closes {
		if math.IsNaN(avgUp[i]) || math.IsNaN(avgDown[i]) {
			continue
		}
		if avgDown[i] == 0 {
			out[i] = 100
			continue
		}
		rs := avgUp[i] / avgDown[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACD returns the fast-slow EMA line, its EMA signal line and the histogram.
func MACD(closes []float64, fast, slow, signal int) (line, sig, hist []float64) {
	f := EMA(closes, fast)
	s := EMA(closes, slow)
	line = nanSeries(len(closes))
	for i := range closes {
		if !math.IsNaN(f[i]) && !math.IsNaN(s[i]) {
			line[i] = f[i] - s[i]
		}
	}
	sig = EMA(line, signal)
	hist = nanSeries(len(closes))
	for i := range closes {
		if !math.IsNaN(line[i]) && !math.IsNaN(sig[i]) {
			hist[i] = line[i] - sig[i]
		}
	}
	return line, sig, hist
}

// RollingStd is the sample standard deviation over a trailing window.
// Windows containing NaN are undefined.
func RollingStd(vals []float64, n int) []float64 {
	out := nanSeries(len(vals))
	if n <= 1 {
		return out
	}
	for i := n - 1; i < len(vals); i++ {
		window := vals[i-n+1 : i+1]
		mean, ok := 0.0, true
		for _, v := range window {
			if math.IsNaN(v) {
				ok = false
				break
			}
			mean += v
		}
		if !ok {
			continue
		}
		mean /= float64(n)
		ss := 0.0
		for _, v := range window {
			ss += (v - mean) * (v - mean)
		}
		out[i] = math.Sqrt(ss / float64(n-1))
	}
	return out
}

// PctChange is the fractional change from the previous value.
func PctChange(vals []float64) []float64 {
	out := nanSeries(len(vals))
	for i := 1; i < len(vals); i++ {
		if vals[i-1] != 0 {
			out[i] = vals[i]/vals[i-1] - 1
		}
	}
	return out
}

// Volatility is the rolling std of percentage changes, in percent.
func Volatility(closes []float64, window int) []float64 {
	out := RollingStd(PctChange(closes), window)
	for i, v := range out {
		if !math.IsNaN(v) {
			out[i] = v * 100
		}
	}
	return out
}

const (
	MAShortWindow    = 5
	MALongWindow     = 25
	RSIPeriod        = 14
	MACDFast         = 12
	MACDSlow         = 26
	MACDSignal       = 9
	VolatilityWindow = 20
)

// Annotate fills the indicator columns of bars. An indicator whose
// minimum history is not met is left NaN for every row.
func Annotate(bars []types.Bar) {
	n := len(bars)
	closes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
	}

	maShort, maLong, rsi := nanSeries(n), nanSeries(n), nanSeries(n)
	line, sig, hist := nanSeries(n), nanSeries(n), nanSeries(n)
	vol := nanSeries(n)

	if n >= MAShortWindow {
		maShort = SMA(closes, MAShortWindow)
	}
	if n >= MALongWindow {
		maLong = SMA(closes, MALongWindow)
	}
	if n >= RSIPeriod {
		rsi = RSI(closes, RSIPeriod)
	}
	if n >= MACDSlow {
		line, sig, hist = MACD(closes, MACDFast, MACDSlow, MACDSignal)
	}
	if n >= VolatilityWindow+1 {
		vol = Volatility(closes, VolatilityWindow)
	}

	for i := range bars {
		bars[i].MAShort = maShort[i]
		bars[i].MALong = maLong[i]
		bars[i].RSI = rsi[i]
		bars[i].MACD = line[i]
		bars[i].MACDSignal = sig[i]
		bars[i].MACDHist = hist[i]
		bars[i].Volatility = vol[i]
	}
}

// Backfill replaces NaNs in every indicator column with the next defined
// value of that column.
func Backfill(bars []types.Bar) {
	cols := []func(*types.Bar) *float64{
		func(b *types.Bar) *float64 { return &b.MAShort },
		func(b *types.Bar) *float64 { return &b.MALong },
		func(b *types.Bar) *float64 { return &b.RSI },
		func(b *types.Bar) *float64 { return &b.MACD },
		func(b *types.Bar) *float64 { return &b.MACDSignal },
		func(b *types.Bar) *float64 { return &b.MACDHist },
		func(b *types.Bar) *float64 { return &b.Volatility },
	}
	for _, col := range cols {
		next := math.NaN()
		for i := len(bars) - 1; i >= 0; i-- {
			v := col(&bars[i])
			if math.IsNaN(*v) {
				*v = next
			} else {
				next = *v
			}
		}
	}
}
