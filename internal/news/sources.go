package news

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"shell-tracker/internal/api"
	"shell-tracker/internal/interfaces"
)

const apiSourceTimeout = 20 * time.Second

// GNewsSource searches gnews.io by keyword.
type GNewsSource struct {
	URL    string
	APIKey string
	Query  string
	Max    int
	client *api.Client
}

var _ interfaces.HeadlineSource = (*GNewsSource)(nil)

func NewGNewsSource(url, apiKey, query string, max int, opts ...api.ClientOption) *GNewsSource {
	opts = append([]api.ClientOption{api.WithTimeout(apiSourceTimeout)}, opts...)
	return &GNewsSource{URL: url, APIKey: apiKey, Query: query, Max: max, client: api.NewClient(opts...)}
}

func (s *GNewsSource) Name() string { return "GNews" }

type gnewsResponse struct {
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"articles"`
}

func (s *GNewsSource) Headlines(ctx context.Context) ([]string, error) {
	req := api.NewRequest("GET", s.URL).WithContext(ctx).WithQuery(map[string]string{
		"q":     s.Query,
		"lang":  "en",
		"max":   strconv.Itoa(s.Max),
		"token": s.APIKey,
	})
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GNews API error: %w", err)
	}
	var data gnewsResponse
	if err := resp.ParseJSON(&data); err != nil {
		return nil, fmt.Errorf("GNews API error: %w", err)
	}

	out := make([]string, 0, len(data.Articles))
	for _, a := range data.Articles {
		if a.Title == "" {
			continue
		}
		out = append(out, fmt.Sprintf("%s. %s (GNews)", a.Title, a.Description))
	}
	return out, nil
}

// NewsAPISource searches newsapi.org /v2/everything.
type NewsAPISource struct {
	URL    string
	APIKey string
	Query  string
	Max    int
	client *api.Client
}

var _ interfaces.HeadlineSource = (*NewsAPISource)(nil)

func NewNewsAPISource(url, apiKey, query string, max int, opts ...api.ClientOption) *NewsAPISource {
	opts = append([]api.ClientOption{api.WithTimeout(apiSourceTimeout)}, opts...)
	return &NewsAPISource{URL: url, APIKey: apiKey, Query: query, Max: max, client: api.NewClient(opts...)}
}

func (s *NewsAPISource) Name() string { return "NewsAPI" }

type newsAPIResponse struct {
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func (s *NewsAPISource) Headlines(ctx context.Context) ([]string, error) {
	req := api.NewRequest("GET", s.URL).WithContext(ctx).WithQuery(map[string]string{
		"q":        s.Query,
		"language": "en",
		"pageSize": strconv.Itoa(s.Max),
		"apiKey":   s.APIKey,
	})
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("NewsAPI error: %w", err)
	}
	var data newsAPIResponse
	if err := resp.ParseJSON(&data); err != nil {
		return nil, fmt.Errorf("NewsAPI error: %w", err)
	}

	out := make([]string, 0, len(data.Articles))
	for _, a := range data.Articles {
		if a.Title == "" {
			continue
		}
		src := a.Source.Name
		if src == "" {
			src = "NewsAPI"
		}
		out = append(out, fmt.Sprintf("%s. %s (来源: %s)", a.Title, a.Description, src))
	}
	return out, nil
}

// gnewsQuery is the short keyword query GNews handles best, e.g. "SHELL coin".
func gnewsQuery(baseAsset string) string {
	return strings.TrimSpace(baseAsset + " coin")
}
