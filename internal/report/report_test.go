package report

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shell-tracker/internal/types"
)

var now = time.Date(2024, 4, 1, 12, 0, 0, 0, time.Local)

func bars(n int, last types.Bar) *types.CandleSeries {
	out := make([]types.Bar, n)
	out[n-1] = last
	return &types.CandleSeries{Bars: out}
}

func samples(prices ...string) []types.PriceSample {
	out := make([]types.PriceSample, len(prices))
	for i, p := range prices {
		out[i] = types.PriceSample{Time: now.Add(-10 * time.Minute).Add(time.Duration(i) * time.Minute), Price: decimal.RequireFromString(p)}
	}
	return out
}

func TestBuildRequiresPrice(t *testing.T) {
	_, err := Build(Input{Symbol: "SHELLUSDT"})
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestBuildFullReport(t *testing.T) {
	in := Input{
		Symbol:  "SHELLUSDT",
		Running: true,
		Price:   1.25,
		Samples: samples("1.00", "1.20", "0.80", "1.10"),
		Candles: bars(30, types.Bar{RSI: 55, MACDHist: 0.01, MAShort: 1.2, MALong: 1.1, Volatility: 2.5}),
		Position: types.Position{
			Side:  types.SideLong,
			Entry: decimal.NewNullDecimal(decimal.RequireFromString("1.2345")),
		},
		Sentiment:    types.Sentiment{Label: types.SentimentPositive, Score: 0.8},
		HasSentiment: true,
		Digest:       "社区活跃",
		Now:          now,
	}
	r, err := Build(in)
	require.NoError(t, err)

	assert.Equal(t, statusRunning, r.Status)
	assert.Equal(t, "当前持仓 @ 1.2345 USDT", r.PositionText)

	require.NotNil(t, r.Stats)
	assert.InDelta(t, 0.8, r.Stats.Min, 1e-9)
	assert.InDelta(t, 1.2, r.Stats.Max, 1e-9)
	assert.InDelta(t, 10.0, r.Stats.ChangePct, 1e-9)
	assert.InDelta(t, 50.0, r.Stats.RangePct, 1e-9)
	assert.InDelta(t, 10.0, r.Stats.DurationMinutes, 1e-9)

	require.NotNil(t, r.Tech)
	assert.Equal(t, "看涨", r.Tech.MACDTrend)
	assert.Equal(t, "多头排列", r.Tech.MATrend)
	assert.Equal(t, "技术指标看涨，可考虑买入。", r.Tech.Advice)

	assert.Equal(t, 90, r.Sentiment.Confidence)
	assert.Equal(t, "📈", r.Sentiment.Emoji)

	for _, want := range []string{
		"🚀 SHELLUSDT 监控状态报告\n时间: 2024-04-01 12:00:00\n状态: 监控中\n\n*持仓状态: 当前持仓 @ 1.2345 USDT*\n\n当前价格: 1.2500 USDT",
		"价格变化: +10.00%",
		"波动幅度: 0.4000 USDT (50.00% in range)",
		"📈 市场看涨 (置信度: 90%)",
		"- RSI: 55.00",
		"- 波动率: 2.50%",
		"\n新闻解读:\n社区活跃\n",
	} {
		assert.Contains(t, r.Text, want)
	}
}

func TestBuildWithoutSessionOrCandles(t *testing.T) {
	r, err := Build(Input{Symbol: "SHELLUSDT", Price: 1, Now: now})
	require.NoError(t, err)

	assert.Equal(t, statusIdle, r.Status)
	assert.Equal(t, "当前无持仓", r.PositionText)
	assert.Nil(t, r.Stats)
	assert.Nil(t, r.Tech)
	assert.Equal(t, SentimentInfo{Label: types.SentimentNeutral, Emoji: "📊", Text: "市场中性", Confidence: 50}, r.Sentiment)
	assert.False(t, strings.Contains(r.Text, "技术分析"))
	assert.False(t, strings.Contains(r.Text, "新闻解读"))
}

func TestAdvice(t *testing.T) {
	tests := []struct {
		name string
		bar  types.Bar
		want string
	}{
		{"overbought", types.Bar{RSI: 75, MACDHist: 1, MAShort: 2, MALong: 1}, "RSI超买，可能回调，建议谨慎。"},
		{"oversold", types.Bar{RSI: 25, MACDHist: -1, MAShort: 1, MALong: 2}, "RSI超卖，可能反弹，可考虑买入。"},
		{"bearish", types.Bar{RSI: 50, MACDHist: -1, MAShort: 1, MALong: 2}, "技术指标看跌，可考虑卖出。"},
		{"mixed", types.Bar{RSI: 50, MACDHist: 1, MAShort: 1, MALong: 2}, "信号不明确，建议观望。"},
		{"undefined rsi", types.Bar{RSI: math.NaN(), MACDHist: 1, MAShort: 2, MALong: 1}, noAdvice},
		{"undefined macd", types.Bar{RSI: 50, MACDHist: math.NaN(), MAShort: 2, MALong: 1}, noAdvice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := techAnalysis(bars(26, tt.bar))
			require.NotNil(t, ta)
			assert.Equal(t, tt.want, ta.Advice)
		})
	}
}

func TestPositionWithUnknownEntry(t *testing.T) {
	assert.Equal(t, "当前持仓 (初始持仓，成本未知)", positionText(types.Position{Side: types.SideLong}))
}

func TestSentimentConfidence(t *testing.T) {
	assert.Equal(t, 70, sentimentInfo(types.Sentiment{Label: types.SentimentNegative, Score: -0.7}, true).Confidence)
	assert.Equal(t, 75, sentimentInfo(types.Sentiment{Label: types.SentimentNeutral, Score: 0.25}, true).Confidence)
}
