package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDeepSeekURL = "https://api.deepseek.com/v1/chat/completions"
	DefaultGNewsURL    = "https://gnews.io/api/v4/search"
	DefaultNewsAPIURL  = "https://newsapi.org/v2/everything"
	DefaultTelegramURL = "https://api.telegram.org"
)

// Config mirrors config.json. JSON is a YAML subset, so the same
// struct decodes either format.
type Config struct {
	API        APIConfig        `yaml:"api" json:"api"`
	Trading    TradingConfig    `yaml:"trading" json:"trading"`
	Monitoring MonitoringConfig `yaml:"monitoring" json:"monitoring"`
	// UI settings belong to the presentation layer and pass through untouched.
	UI map[string]any `yaml:"ui" json:"ui"`
}

type APIConfig struct {
	Binance  BinanceConfig  `yaml:"binance" json:"binance"`
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`
	News     NewsConfig     `yaml:"news" json:"news"`
}

type BinanceConfig struct {
	APIKey    string `yaml:"api_key" json:"api_key"`
	APISecret string `yaml:"api_secret" json:"api_secret"`
	BaseURL   string `yaml:"base_url,omitempty" json:"base_url,omitempty" validate:"omitempty,url"`
}

type TelegramConfig struct {
	Token   string `yaml:"token" json:"token"`
	ChatID  string `yaml:"chat_id" json:"chat_id"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
	APIURL  string `yaml:"api_url,omitempty" json:"api_url,omitempty" validate:"omitempty,url"`
}

type NewsConfig struct {
	GNewsAPIKey    string `yaml:"gnews_api_key" json:"gnews_api_key"`
	NewsAPIKey     string `yaml:"newsapi_api_key" json:"newsapi_api_key"`
	DeepSeekAPIKey string `yaml:"deepseek_api_key" json:"deepseek_api_key"`
	DeepSeekAPIURL string `yaml:"deepseek_api_url" json:"deepseek_api_url" validate:"omitempty,url"`
	GNewsAPIURL    string `yaml:"gnews_api_url,omitempty" json:"gnews_api_url,omitempty" validate:"omitempty,url"`
	NewsAPIURL     string `yaml:"newsapi_api_url,omitempty" json:"newsapi_api_url,omitempty" validate:"omitempty,url"`
	Enabled        bool   `yaml:"enabled" json:"enabled"`
}

type TradingConfig struct {
	Symbol                    string  `yaml:"symbol" json:"symbol" validate:"required,endswith=USDT"`
	Interval                  string  `yaml:"interval" json:"interval" validate:"oneof=1m 3m 5m 15m 30m 1h 2h 4h 1d"`
	StopLossPercent           float64 `yaml:"stop_loss_percent" json:"stop_loss_percent" validate:"gt=0,lt=100"`
	TakeProfitPercent         float64 `yaml:"take_profit_percent" json:"take_profit_percent" validate:"gt=0"`
	TradeQuantity             float64 `yaml:"trade_quantity" json:"trade_quantity" validate:"gte=0"`
	SentimentInfluenceEnabled bool    `yaml:"sentiment_influence_enabled" json:"sentiment_influence_enabled"`
	SentimentInfluenceWeight  float64 `yaml:"sentiment_influence_weight" json:"sentiment_influence_weight" validate:"gte=0,lte=1"`
}

type MonitoringConfig struct {
	DurationMinutes        int      `yaml:"duration_minutes" json:"duration_minutes" validate:"gt=0"`
	RefreshIntervalSeconds int      `yaml:"refresh_interval_seconds" json:"refresh_interval_seconds" validate:"gt=0"`
	PriceAlertThreshold    float64  `yaml:"price_alert_threshold" json:"price_alert_threshold" validate:"gt=0"`
	NewsQuery              string   `yaml:"news_query" json:"news_query"`
	MaxNewsPerSource       int      `yaml:"max_news_per_source" json:"max_news_per_source" validate:"gte=1,lte=100"`
	RSSFeeds               []string `yaml:"rss_feeds,omitempty" json:"rss_feeds,omitempty" validate:"dive,url"`
	RSSKeywords            []string `yaml:"rss_keywords,omitempty" json:"rss_keywords,omitempty"`
	MaxArticlesPerRSS      int      `yaml:"max_articles_per_rss,omitempty" json:"max_articles_per_rss,omitempty" validate:"gte=0"`
	PriceLogDir            string   `yaml:"price_log_dir,omitempty" json:"price_log_dir,omitempty"`
}

var DefaultRSSFeeds = []string{
	"https://cointelegraph.com/rss",
	"https://www.coindesk.com/arc/outboundfeeds/rss/",
	"https://decrypt.co/feed",
	"https://www.theblock.co/rss.xml",
	"https://www.coingecko.com/en/news/feed.rss",
	"https://www.binance.com/en/feed",
	"https://research.binance.com/en/feed",
}

var DefaultRSSKeywords = []string{"myshell", "shell coin", " shell "}

// Default returns the configuration written for a fresh install.
func Default() *Config {
	c := &Config{
		API: APIConfig{
			Telegram: TelegramConfig{Enabled: true},
			News: NewsConfig{
				DeepSeekAPIURL: DefaultDeepSeekURL,
				Enabled:        true,
			},
		},
		Trading: TradingConfig{
			Symbol:                    "SHELLUSDT",
			Interval:                  "15m",
			StopLossPercent:           5.0,
			TakeProfitPercent:         10.0,
			TradeQuantity:             100,
			SentimentInfluenceEnabled: true,
			SentimentInfluenceWeight:  0.5,
		},
		Monitoring: MonitoringConfig{
			DurationMinutes:        120,
			RefreshIntervalSeconds: 15,
			PriceAlertThreshold:    1.0,
			NewsQuery:              "MyShell OR SHELL coin crypto",
			MaxNewsPerSource:       3,
			MaxArticlesPerRSS:      2,
		},
		UI: map[string]any{
			"theme":                      "dark",
			"language":                   "zh_CN",
			"chart_update_interval_ms":   1000,
			"enable_sound_alerts":        true,
			"show_desktop_notifications": true,
		},
	}
	c.fillDefaults()
	return c
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: failed '%s' check (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	return nil
}

// BaseAsset strips the quote currency from the trading symbol.
func (c *Config) BaseAsset() string {
	return strings.TrimSuffix(c.Trading.Symbol, "USDT")
}

// Feeds returns the configured RSS feeds, falling back to the defaults.
func (c *Config) Feeds() []string {
	if len(c.Monitoring.RSSFeeds) > 0 {
		return c.Monitoring.RSSFeeds
	}
	return DefaultRSSFeeds
}

func (c *Config) Keywords() []string {
	if len(c.Monitoring.RSSKeywords) > 0 {
		return c.Monitoring.RSSKeywords
	}
	return DefaultRSSKeywords
}

// LoadConfig decodes path over the defaults, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	c.applyEnv()
	c.fillDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return c, nil
}

// LoadOrCreate behaves like LoadConfig but writes the defaults first
// when path does not exist.
func LoadOrCreate(path string) (*Config, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Save(path, Default()); err != nil {
			return nil, false, err
		}
		c, err := LoadConfig(path)
		return c, true, err
	}
	c, err := LoadConfig(path)
	return c, false, err
}

// Save writes the configuration as indented JSON.
func Save(path string, c *Config) error {
	b, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o600)
}

func (c *Config) fillDefaults() {
	if c.API.News.DeepSeekAPIURL == "" {
		c.API.News.DeepSeekAPIURL = DefaultDeepSeekURL
	}
	if c.API.News.GNewsAPIURL == "" {
		c.API.News.GNewsAPIURL = DefaultGNewsURL
	}
	if c.API.News.NewsAPIURL == "" {
		c.API.News.NewsAPIURL = DefaultNewsAPIURL
	}
	if c.API.Telegram.APIURL == "" {
		c.API.Telegram.APIURL = DefaultTelegramURL
	}
	if c.Monitoring.PriceLogDir == "" {
		c.Monitoring.PriceLogDir = "price_logs"
	}
}

// applyEnv lets secrets live in the environment (or .env) instead of the file.
func (c *Config) applyEnv() {
	overrides := []struct {
		key string
		dst *string
	}{
		{"BINANCE_API_KEY", &c.API.Binance.APIKey},
		{"BINANCE_API_SECRET", &c.API.Binance.APISecret},
		{"TELEGRAM_TOKEN", &c.API.Telegram.Token},
		{"TELEGRAM_CHAT_ID", &c.API.Telegram.ChatID},
		{"GNEWS_API_KEY", &c.API.News.GNewsAPIKey},
		{"NEWSAPI_API_KEY", &c.API.News.NewsAPIKey},
		{"DEEPSEEK_API_KEY", &c.API.News.DeepSeekAPIKey},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.key); v != "" {
			*o.dst = v
		}
	}
}
