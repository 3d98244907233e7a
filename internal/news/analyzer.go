package news

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"shell-tracker/internal/interfaces"
	"shell-tracker/internal/llm"
	"shell-tracker/internal/logger"
	"shell-tracker/internal/types"
)

const (
	msgNotConfigured  = "DeepSeek API未配置。"
	msgNothingToParse = "无新闻内容可供分析。"
	msgNoSummary      = "未能找到中文摘要部分。"
	msgEmptySummary   = "未能提取到有效的中文摘要内容。"
)

var (
	sentimentRe   = regexp.MustCompile(`(?im)^\s*情感\s*:\s*(positive|negative|neutral)\s*$`)
	scoreRe       = regexp.MustCompile(`(?im)^\s*情感分数\s*:\s*(-?\d+(\.\d+)?)\s*$`)
	summaryRe     = regexp.MustCompile(`(?ims)^\s*中文摘要\s*:(.*)`)
	summaryTailRe = regexp.MustCompile(`(?is)\n\s*(分析理由|情感|情感分数)\s*:.*`)
)

// labelThreshold infers a label from the score when the reply has none.
const labelThreshold = 0.3

// Analyzer turns a headline set into a (summary, label, score) result
// through a chat-completion model. Results are cached by headline set.
type Analyzer struct {
	completer  interfaces.Completer
	configured bool
	cache      *sentimentCache
	onError    func(source string, err error)
}

type AnalyzerOption func(*Analyzer)

func WithAnalyzerErrorSink(fn func(source string, err error)) AnalyzerOption {
	return func(a *Analyzer) { a.onError = fn }
}

// WithCache sets the cache TTL and capacity.
func WithCache(ttl time.Duration, maxEntries int) AnalyzerOption {
	return func(a *Analyzer) {
		a.cache.close()
		a.cache = newSentimentCache(ttl, maxEntries)
	}
}

// NewAnalyzer builds an analyzer. configured is false when no API key is
// set; such an analyzer never calls the completer.
func NewAnalyzer(c interfaces.Completer, configured bool, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		completer:  c,
		configured: configured,
		cache:      newSentimentCache(DefaultCacheTTL, DefaultCacheMaxEntries),
		onError:    func(string, error) {},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Analyzer) Close() { a.cache.close() }

// Fingerprint identifies a headline set independent of order and repeats.
func Fingerprint(headlines []string) string {
	uniq := slices.Clone(headlines)
	slices.Sort(uniq)
	uniq = slices.Compact(uniq)

	h := sha256.New()
	for _, s := range uniq {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Analyze never fails: errors are reported and a best-effort result is returned.
func (a *Analyzer) Analyze(ctx context.Context, headlines []string, query string) types.Sentiment {
	key := Fingerprint(headlines)
	if cached, ok := a.cache.get(key); ok {
		logger.Debug(ctx, "Using cached sentiment", "fingerprint", key[:12])
		return cached
	}

	neutral := types.Sentiment{Label: types.SentimentNeutral}
	if !a.configured {
		neutral.Summary = msgNotConfigured
		return neutral
	}
	if len(headlines) == 0 {
		neutral.Summary = msgNothingToParse
		return neutral
	}

	reply, err := a.completer.Complete(ctx, buildPrompt(headlines, query))
	if err != nil {
		if errors.Is(err, llm.ErrMalformedResponse) {
			a.onError("news.analyzer", fmt.Errorf("解析 DeepSeek 响应时出错: %w", err))
			neutral.Summary = "解析 DeepSeek 响应失败: " + err.Error()
			return neutral
		}
		a.onError("news.analyzer", fmt.Errorf("调用 DeepSeek API 时发生网络错误: %w", err))
		neutral.Summary = "调用 DeepSeek 失败 (网络错误): " + err.Error()
		return neutral
	}

	result := parseCompletion(reply)
	a.cache.set(key, result)
	logger.Info(ctx, "News sentiment analysed", "label", result.Label, "score", result.Score, "headlines", len(headlines))
	return result
}

func buildPrompt(headlines []string, query string) string {
	var b strings.Builder
	for i, h := range headlines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(h)
	}
	return fmt.Sprintf(`请分析以下关于'%[1]s'的新闻标题和描述：
%[2]s

请完成以下任务：
1. 将上述新闻内容翻译成简洁流畅的中文。
2. 对翻译后的内容进行总结，提炼出最关键的信息点，生成一段不超过150字的中文摘要。
3. 基于这些新闻，判断市场对'%[1]s'的整体情感倾向是积极(positive)、消极(negative)还是中性(neutral)。
4. （可选）如果能明确判断，请给出一个从-1.0 (极度消极) 到 1.0 (极度积极) 的情感分数。

请严格按照以下格式返回结果，确保每个标签都存在，标签和内容之间用冒号分隔：
情感: [positive/negative/neutral]
情感分数: [数值，如果无法判断则为 0.0]
中文摘要:
[这里是总结后的中文新闻内容]
`, query, b.String())
}

// parseCompletion reads the three labelled sections. Missing parts fall
// back to neutral, 0.0 and a placeholder summary.
func parseCompletion(text string) types.Sentiment {
	var (
		label string
		score float64
	)
	if m := sentimentRe.FindStringSubmatch(text); m != nil {
		label = strings.ToLower(m[1])
	}
	if m := scoreRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			score = max(-1.0, min(1.0, v))
		}
	}

	summary := msgNoSummary
	if m := summaryRe.FindStringSubmatch(text); m != nil {
		summary = strings.TrimSpace(m[1])
		summary = summaryTailRe.ReplaceAllString(summary, "")
		if summary == "" {
			summary = msgEmptySummary
		}
	}

	if label == "" {
		switch {
		case score >= labelThreshold:
			label = types.SentimentPositive
		case score <= -labelThreshold:
			label = types.SentimentNegative
		default:
			label = types.SentimentNeutral
		}
	}
	return types.Sentiment{Summary: summary, Label: label, Score: score}
}
