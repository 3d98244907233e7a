package engine

import (
	"fmt"
	"math"

	"shell-tracker/internal/store"
	"shell-tracker/internal/ta"
	"shell-tracker/internal/types"
)

const (
	buyThreshold  = 0.6
	sellThreshold = -0.6
	rsiMidline    = 50.0

	recBuy     = "考虑分批买入，止损参考 %.4f"
	recSell    = "考虑减仓或观望，止盈参考 %.4f"
	recNeutral = "信号不明确，建议观望"
)

// score is the technical verdict blended with the sentiment factor.
type score struct {
	buyTech      bool
	sellTech     bool
	buy          float64
	sell         float64
	hasSentiment bool
}

func scoreBars(prev, last types.Bar, sentiment types.Sentiment, hasSentiment bool, t store.TradingConfig) score {
	s := score{hasSentiment: hasSentiment}
	s.buyTech = prev.MAShort <= prev.MALong && last.MAShort > last.MALong &&
		last.RSI < rsiMidline &&
		prev.MACD <= prev.MACDSignal && last.MACD > last.MACDSignal
	s.sellTech = prev.MAShort >= prev.MALong && last.MAShort < last.MALong &&
		last.RSI > rsiMidline &&
		prev.MACD >= prev.MACDSignal && last.MACD < last.MACDSignal

	var factor float64
	if t.SentimentInfluenceEnabled && hasSentiment {
		factor = sentiment.Score * t.SentimentInfluenceWeight
	}
	s.buy = boolScore(s.buyTech) + factor
	s.sell = -boolScore(s.sellTech) - factor
	return s
}

// confidence is non-zero only when a technical signal fired.
func (s score) confidence() int {
	if !s.buyTech && !s.sellTech {
		return 0
	}
	dominant := s.sell
	if s.buy > 0 {
		dominant = s.buy
	}
	factors := 1.0
	if s.hasSentiment {
		factors++
	}
	return int(math.Min(100, math.Abs(dominant)/(factors*2)*100))
}

func decide(s score, price float64, t store.TradingConfig) types.Signal {
	sig := types.Signal{BuyScore: s.buy, SellScore: s.sell, Price: price}
	switch {
	case s.buy >= buyThreshold:
		sig.Action = types.ActionBuy
		sig.Confidence = s.confidence()
		sig.Recommendation = fmt.Sprintf(recBuy, price*(1-t.StopLossPercent/100))
	case s.sell <= sellThreshold:
		sig.Action = types.ActionSell
		sig.Confidence = s.confidence()
		sig.Recommendation = fmt.Sprintf(recSell, price*(1+t.TakeProfitPercent/100))
	default:
		sig.Action = types.ActionNeutral
		sig.Confidence = max(20, 100-int(math.Abs(s.buy-s.sell)*50))
		sig.Recommendation = recNeutral
	}
	return sig
}

// evaluate returns ok=false for short series or undefined indicators.
func evaluate(series *types.CandleSeries, sentiment types.Sentiment, hasSentiment bool, t store.TradingConfig) (types.Signal, bool) {
	if series.Len() < ta.MACDSlow {
		return types.Signal{}, false
	}
	prev, last, ok := series.Latest()
	if !ok || !indicatorsDefined(prev, last) {
		return types.Signal{}, false
	}
	return decide(scoreBars(prev, last, sentiment, hasSentiment, t), last.Close, t), true
}
