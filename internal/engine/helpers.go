package engine

import (
	"fmt"
	"math"

	"shell-tracker/internal/types"
)

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func indicatorsDefined(prev, last types.Bar) bool {
	for _, v := range []float64{
		last.Close, last.MAShort, last.MALong, last.RSI, last.MACD, last.MACDSignal,
		prev.MAShort, prev.MALong, prev.MACD, prev.MACDSignal,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func sentimentTag(s types.Sentiment, ok bool) string {
	if !ok || s.Label == "" {
		return ""
	}
	emoji := "😐"
	switch s.Label {
	case types.SentimentPositive:
		emoji = "😀"
	case types.SentimentNegative:
		emoji = "😟"
	}
	return fmt.Sprintf("%s %.1f", emoji, s.Score)
}

func indicatorSnapshot(b types.Bar) map[string]float64 {
	out := map[string]float64{}
	for k, v := range map[string]float64{
		"MA5": b.MAShort, "MA25": b.MALong, "RSI": b.RSI,
		"MACD": b.MACD, "MACD_SIGNAL": b.MACDSignal, "VOLATILITY": b.Volatility,
	} {
		// NaN is not valid JSON
		if !math.IsNaN(v) {
			out[k] = v
		}
	}
	return out
}
