package news

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"shell-tracker/internal/api"
	"shell-tracker/internal/interfaces"
	"shell-tracker/internal/logger"
	"shell-tracker/internal/types"
)

const (
	rssFeedTimeout   = 25 * time.Second
	rssFanOutTimeout = 30 * time.Second
)

// RSSSource reads a list of feeds concurrently and keeps entries that
// mention one of the keywords.
type RSSSource struct {
	Feeds       []string
	Keywords    []string
	MaxPerFeed  int
	onError     func(source string, err error)
	onArticles  func([]types.Article)
	feedTimeout time.Duration
	waitTimeout time.Duration
	now         func() time.Time
}

var _ interfaces.HeadlineSource = (*RSSSource)(nil)

type RSSOption func(*RSSSource)

func WithRSSErrorSink(fn func(source string, err error)) RSSOption {
	return func(s *RSSSource) { s.onError = fn }
}

// WithArticlesHook receives the merged article list whenever it is non-empty.
func WithArticlesHook(fn func([]types.Article)) RSSOption {
	return func(s *RSSSource) { s.onArticles = fn }
}

func WithRSSTimeouts(feed, wait time.Duration) RSSOption {
	return func(s *RSSSource) {
		s.feedTimeout = feed
		s.waitTimeout = wait
	}
}

func NewRSSSource(feeds, keywords []string, maxPerFeed int, opts ...RSSOption) *RSSSource {
	s := &RSSSource{
		Feeds:       feeds,
		Keywords:    keywords,
		MaxPerFeed:  maxPerFeed,
		onError:     func(string, error) {},
		feedTimeout: rssFeedTimeout,
		waitTimeout: rssFanOutTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RSSSource) Name() string { return "RSS" }

func (s *RSSSource) Headlines(ctx context.Context) ([]string, error) {
	articles := s.Articles(ctx)
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, fmt.Sprintf("%s. %s (来源: %s)", a.Title, a.Summary, a.Source))
	}
	return out, nil
}

// Articles fetches every feed in parallel, waits at most the fan-out timeout,
// and returns what finished, newest first.
func (s *RSSSource) Articles(ctx context.Context) []types.Article {
	if len(s.Feeds) == 0 || s.MaxPerFeed <= 0 {
		return nil
	}

	results := make([][]types.Article, len(s.Feeds))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i, feed := range s.Feeds {
		wg.Add(1)
		go func(i int, feed string) {
			defer wg.Done()
			articles, err := s.fetchFeed(ctx, feed)
			if err != nil {
				s.onError("news.rss", fmt.Errorf("RSS fetch error (%s): %w", feed, err))
			}
			mu.Lock()
			results[i] = articles
			mu.Unlock()
		}(i, feed)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.waitTimeout):
		logger.Warn(ctx, "RSS fan-out timed out, merging partial results", "feeds", len(s.Feeds))
	case <-ctx.Done():
	}

	mu.Lock()
	var all []types.Article
	for _, r := range results {
		all = append(all, r...)
	}
	mu.Unlock()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Published.After(all[j].Published)
	})
	if len(all) > 0 && s.onArticles != nil {
		s.onArticles(all)
	}
	return all
}

type rawEntry struct {
	title, summary, link, date string
}

func (s *RSSSource) fetchFeed(ctx context.Context, feed string) ([]types.Article, error) {
	c := colly.NewCollector(
		colly.UserAgent(api.BrowserUserAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.feedTimeout)

	var (
		channelTitle string
		entries      []rawEntry
	)
	c.OnXML("//channel/title", func(e *colly.XMLElement) {
		if channelTitle == "" {
			channelTitle = strings.TrimSpace(e.Text)
		}
	})
	c.OnXML("/feed/title", func(e *colly.XMLElement) {
		if channelTitle == "" {
			channelTitle = strings.TrimSpace(e.Text)
		}
	})
	c.OnXML("//item", func(e *colly.XMLElement) {
		summary := e.ChildText("description")
		if summary == "" {
			summary = e.ChildText("summary")
		}
		entries = append(entries, rawEntry{
			title:   e.ChildText("title"),
			summary: summary,
			link:    e.ChildText("link"),
			date:    e.ChildText("pubDate"),
		})
	})
	c.OnXML("//entry", func(e *colly.XMLElement) {
		summary := e.ChildText("summary")
		if summary == "" {
			summary = e.ChildText("content")
		}
		date := e.ChildText("published")
		if date == "" {
			date = e.ChildText("updated")
		}
		entries = append(entries, rawEntry{
			title:   e.ChildText("title"),
			summary: summary,
			link:    e.ChildAttr("link", "href"),
			date:    date,
		})
	})

	if err := c.Visit(feed); err != nil {
		return nil, err
	}
	c.Wait()

	source := channelTitle
	if source == "" {
		source = feed
	}

	now := s.now()
	var out []types.Article
	for _, e := range entries {
		if len(out) >= s.MaxPerFeed {
			break
		}
		title := strings.TrimSpace(e.title)
		summary := stripHTML(e.summary)
		if !matchesKeyword(title, summary, s.Keywords) {
			continue
		}
		out = append(out, types.Article{
			Title:     title,
			Summary:   truncateSummary(summary),
			Source:    source,
			URL:       strings.TrimSpace(e.link),
			Published: parsePubDate(e.date, now),
		})
	}
	return out, nil
}
