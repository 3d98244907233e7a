package news

import (
	"context"
	"sync"

	"shell-tracker/internal/events"
	"shell-tracker/internal/interfaces"
	"shell-tracker/internal/logger"
	"shell-tracker/internal/store"
	"shell-tracker/internal/types"
)

const (
	msgNewsDisabled = "新闻获取功能已禁用。"
	msgNoNews       = "未能获取到相关新闻。"
)

// Service runs one news cycle at a time: collect headlines from every
// configured source, analyse them and keep the latest result.
type Service struct {
	cfg      *store.Handle
	analyzer *Analyzer
	pub      events.Publisher
	rssOpts  []RSSOption

	mu         sync.RWMutex
	current    *types.Sentiment
	lastDigest string
}

var (
	_ interfaces.NewsProcessor   = (*Service)(nil)
	_ interfaces.SentimentSource = (*Service)(nil)
)

type ServiceOption func(*Service)

// WithRSSOptions appends options to every RSS source the service builds.
func WithRSSOptions(opts ...RSSOption) ServiceOption {
	return func(s *Service) { s.rssOpts = append(s.rssOpts, opts...) }
}

func NewService(cfg *store.Handle, analyzer *Analyzer, pub events.Publisher, opts ...ServiceOption) *Service {
	s := &Service{cfg: cfg, analyzer: analyzer, pub: pub}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// sources is rebuilt every cycle so configuration edits apply on the next run.
func (s *Service) sources(c store.Config) []interfaces.HeadlineSource {
	var out []interfaces.HeadlineSource
	news := c.API.News
	if news.GNewsAPIKey != "" {
		out = append(out, NewGNewsSource(news.GNewsAPIURL, news.GNewsAPIKey, gnewsQuery(c.BaseAsset()), c.Monitoring.MaxNewsPerSource))
	}
	if news.NewsAPIKey != "" {
		out = append(out, NewNewsAPISource(news.NewsAPIURL, news.NewsAPIKey, c.Monitoring.NewsQuery, c.Monitoring.MaxNewsPerSource))
	}

	opts := append([]RSSOption{
		WithRSSErrorSink(s.pub.ReportError),
		WithArticlesHook(func(a []types.Article) { s.pub.Publish(events.KindRSSNews, a) }),
	}, s.rssOpts...)
	out = append(out, NewRSSSource(c.Feeds(), c.Keywords(), c.Monitoring.MaxArticlesPerRSS, opts...))
	return out
}

// FetchAndProcess runs a full news cycle. It never fails; problems are
// reported on the bus and reflected in the returned summary.
func (s *Service) FetchAndProcess(ctx context.Context) types.Sentiment {
	c := s.cfg.Snapshot()
	if !c.API.News.Enabled {
		return types.Sentiment{Summary: msgNewsDisabled}
	}

	timer := logger.StartOperation(ctx, "news.fetch_and_process", "symbol", c.Trading.Symbol)
	ctx = timer.GetContext()

	headlines := NewAggregator(s.pub.ReportError, s.sources(c)...).Collect(ctx)
	if len(headlines) == 0 {
		s.mu.Lock()
		s.lastDigest = msgNoNews
		s.mu.Unlock()
		timer.End("headlines", 0)
		return types.Sentiment{Summary: msgNoNews, Label: types.SentimentNeutral}
	}

	result := s.analyzer.Analyze(ctx, headlines, c.Monitoring.NewsQuery)

	s.mu.Lock()
	s.current = &result
	s.lastDigest = result.Summary
	s.mu.Unlock()

	s.pub.Publish(events.KindNewsProcessed, result)
	timer.End("headlines", len(headlines), "label", result.Label, "score", result.Score)
	return result
}

// Current returns the last analysed sentiment, if any cycle produced one.
func (s *Service) Current() (types.Sentiment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return types.Sentiment{}, false
	}
	return *s.current, true
}

// LastDigest is the summary shown in status reports.
func (s *Service) LastDigest() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastDigest
}

func (s *Service) Close() { s.analyzer.Close() }
