// Package report assembles the human-readable status report sent to
// Telegram and printed by the CLI.
package report

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"shell-tracker/internal/types"
)

var ErrNoPrice = errors.New("无法获取当前价格数据")

const (
	statusRunning = "监控中"
	statusIdle    = "未监控"
	noAdvice      = "无法提供建议"
	notAvailable  = "N/A"
)

// Input is everything a report is built from. It is gathered by the caller
// so that Build stays a pure function.
type Input struct {
	Symbol       string
	Running      bool
	Price        float64
	Samples      []types.PriceSample
	Candles      *types.CandleSeries
	Position     types.Position
	Sentiment    types.Sentiment
	HasSentiment bool
	Digest       string
	Now          time.Time
}

type SessionStats struct {
	Min             float64 `json:"min_price"`
	Max             float64 `json:"max_price"`
	ChangePct       float64 `json:"price_change"`
	Range           float64 `json:"price_volatility"`
	RangePct        float64 `json:"volatility_percent"`
	DurationMinutes float64 `json:"duration"`
}

// TechAnalysis holds the latest indicator row. Nil pointers are undefined values.
type TechAnalysis struct {
	RSI        *float64 `json:"rsi"`
	MACD       *float64 `json:"macd"`
	MACDSignal *float64 `json:"macd_signal"`
	MACDDiff   *float64 `json:"macd_diff"`
	MA5        *float64 `json:"ma5"`
	MA25       *float64 `json:"ma25"`
	Volatility *float64 `json:"volatility"`
	MACDTrend  string   `json:"macd_trend"`
	MATrend    string   `json:"ma_trend"`
	Advice     string   `json:"advice"`
}

type SentimentInfo struct {
	Label      string  `json:"sentiment"`
	Score      float64 `json:"score"`
	Emoji      string  `json:"emoji"`
	Text       string  `json:"text"`
	Confidence int     `json:"confidence"`
}

type Report struct {
	Timestamp    string            `json:"timestamp"`
	Status       string            `json:"status"`
	Symbol       string            `json:"symbol"`
	Price        float64           `json:"current_price"`
	Position     types.Position    `json:"position"`
	PositionText string            `json:"position_text"`
	Stats        *SessionStats     `json:"session_stats,omitempty"`
	Tech         *TechAnalysis     `json:"tech_analysis,omitempty"`
	Sentiment    SentimentInfo     `json:"sentiment"`
	Digest       string            `json:"news,omitempty"`
	Charts       map[string]string `json:"charts"`
	Text         string            `json:"text_report"`
}

func Build(in Input) (*Report, error) {
	if in.Price <= 0 || math.IsNaN(in.Price) {
		return nil, ErrNoPrice
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	r := &Report{
		Timestamp:    in.Now.Format("2006-01-02 15:04:05"),
		Status:       statusIdle,
		Symbol:       in.Symbol,
		Price:        in.Price,
		Position:     in.Position,
		PositionText: positionText(in.Position),
		Stats:        sessionStats(in.Samples, in.Now),
		Tech:         techAnalysis(in.Candles),
		Sentiment:    sentimentInfo(in.Sentiment, in.HasSentiment),
		Digest:       in.Digest,
		Charts:       map[string]string{},
	}
	if in.Running {
		r.Status = statusRunning
	}
	r.Text = render(r)
	return r, nil
}

func positionText(p types.Position) string {
	switch {
	case !p.IsLong():
		return "当前无持仓"
	case p.Entry.Valid:
		return fmt.Sprintf("当前持仓 @ %.4f USDT", p.Entry.Decimal.InexactFloat64())
	default:
		return "当前持仓 (初始持仓，成本未知)"
	}
}

func sessionStats(samples []types.PriceSample, now time.Time) *SessionStats {
	if len(samples) == 0 {
		return nil
	}
	first := samples[0].Price.InexactFloat64()
	last := samples[len(samples)-1].Price.InexactFloat64()
	lo, hi := first, first
	for _, s := range samples[1:] {
		p := s.Price.InexactFloat64()
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}

	st := &SessionStats{
		Min:             lo,
		Max:             hi,
		Range:           hi - lo,
		DurationMinutes: now.Sub(samples[0].Time).Minutes(),
	}
	if first != 0 {
		st.ChangePct = (last - first) / first * 100
	}
	if lo > 0 {
		st.RangePct = (hi - lo) / lo * 100
	}
	return st
}

func defined(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func techAnalysis(series *types.CandleSeries) *TechAnalysis {
	if series.Len() < 26 {
		return nil
	}
	last := series.Bars[series.Len()-1]
	ta := &TechAnalysis{
		RSI:        defined(last.RSI),
		MACD:       defined(last.MACD),
		MACDSignal: defined(last.MACDSignal),
		MACDDiff:   defined(last.MACDHist),
		MA5:        defined(last.MAShort),
		MA25:       defined(last.MALong),
		Volatility: defined(last.Volatility),
		MACDTrend:  notAvailable,
		MATrend:    notAvailable,
		Advice:     noAdvice,
	}

	if ta.MACDDiff != nil {
		ta.MACDTrend = "看跌"
		if *ta.MACDDiff > 0 {
			ta.MACDTrend = "看涨"
		}
	}

	maKnown := ta.MA5 != nil && ta.MA25 != nil
	if maKnown {
		switch {
		case *ta.MA5 > *ta.MA25:
			ta.MATrend = "多头排列"
		case *ta.MA5 < *ta.MA25:
			ta.MATrend = "空头排列"
		default:
			ta.MATrend = "均线交叉"
		}
	}

	if ta.RSI != nil {
		switch {
		case *ta.RSI > 70:
			ta.Advice = "RSI超买，可能回调，建议谨慎。"
		case *ta.RSI < 30:
			ta.Advice = "RSI超卖，可能反弹，可考虑买入。"
		case ta.MACDDiff != nil && maKnown:
			switch {
			case *ta.MACDDiff > 0 && *ta.MA5 > *ta.MA25:
				ta.Advice = "技术指标看涨，可考虑买入。"
			case *ta.MACDDiff < 0 && *ta.MA5 < *ta.MA25:
				ta.Advice = "技术指标看跌，可考虑卖出。"
			default:
				ta.Advice = "信号不明确，建议观望。"
			}
		}
	}
	return ta
}

func sentimentInfo(s types.Sentiment, ok bool) SentimentInfo {
	if !ok || s.Label == "" {
		return SentimentInfo{Label: types.SentimentNeutral, Emoji: "📊", Text: "市场中性", Confidence: 50}
	}
	info := SentimentInfo{Label: s.Label, Score: s.Score}
	switch s.Label {
	case types.SentimentPositive:
		info.Emoji, info.Text = "📈", "市场看涨"
		info.Confidence = int((s.Score + 1) * 50)
	case types.SentimentNegative:
		info.Emoji, info.Text = "📉", "市场看跌"
		info.Confidence = int(math.Abs(s.Score) * 100)
	default:
		info.Emoji, info.Text = "📊", "市场中性"
		info.Confidence = int((1 - math.Abs(s.Score)) * 100)
	}
	return info
}

func orNA(v *float64, format string) string {
	if v == nil {
		return notAvailable
	}
	return fmt.Sprintf(format, *v)
}

func render(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚀 %s 监控状态报告\n时间: %s\n状态: %s\n\n*持仓状态: %s*\n\n当前价格: %.4f USDT",
		r.Symbol, r.Timestamp, r.Status, r.PositionText, r.Price)

	if st := r.Stats; st != nil {
		fmt.Fprintf(&b, "\n监控时长: %.1f 分钟\n最高价: %.4f USDT\n最低价: %.4f USDT\n价格变化: %+.2f%%\n波动幅度: %.4f USDT (%.2f%% in range)\n",
			st.DurationMinutes, st.Max, st.Min, st.ChangePct, st.Range, st.RangePct)
	}

	if ta := r.Tech; ta != nil {
		s := r.Sentiment
		fmt.Fprintf(&b, "\n---------------\n%s %s (置信度: %d%%)\n技术分析:\n- RSI: %s\n- MACD: %s\n- 均线: %s\n- 波动率: %s\n建议操作: %s\n",
			s.Emoji, s.Text, s.Confidence,
			orNA(ta.RSI, "%.2f"), ta.MACDTrend, ta.MATrend, orNA(ta.Volatility, "%.2f%%"), ta.Advice)
	}

	if r.Digest != "" {
		fmt.Fprintf(&b, "\n新闻解读:\n%s\n", r.Digest)
	}
	return b.String()
}
