package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefaultsAreValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, "SHELLUSDT", c.Trading.Symbol)
	assert.Equal(t, "15m", c.Trading.Interval)
	assert.Equal(t, 5.0, c.Trading.StopLossPercent)
	assert.Equal(t, 10.0, c.Trading.TakeProfitPercent)
	assert.True(t, c.Trading.SentimentInfluenceEnabled)
	assert.Equal(t, 0.5, c.Trading.SentimentInfluenceWeight)
	assert.Equal(t, 120, c.Monitoring.DurationMinutes)
	assert.Equal(t, 15, c.Monitoring.RefreshIntervalSeconds)
	assert.Equal(t, 2, c.Monitoring.MaxArticlesPerRSS)
	assert.Equal(t, DefaultDeepSeekURL, c.API.News.DeepSeekAPIURL)
	assert.Equal(t, "SHELL", c.BaseAsset())
	assert.Len(t, c.Feeds(), 7)
	assert.Equal(t, []string{"myshell", "shell coin", " shell "}, c.Keywords())
}

func TestLoadConfigJSONKeepsDefaultsForMissingKeys(t *testing.T) {
	p := writeFile(t, "config.json", `{
    "trading": {"symbol": "SHELLUSDT", "interval": "1h", "stop_loss_percent": 3},
    "monitoring": {"refresh_interval_seconds": 5, "rss_keywords": ["shell"]}
}`)

	c, err := LoadConfig(p)
	require.NoError(t, err)

	assert.Equal(t, "1h", c.Trading.Interval)
	assert.Equal(t, 3.0, c.Trading.StopLossPercent)
	assert.Equal(t, 10.0, c.Trading.TakeProfitPercent)
	assert.Equal(t, 5, c.Monitoring.RefreshIntervalSeconds)
	assert.Equal(t, 120, c.Monitoring.DurationMinutes)
	assert.Equal(t, []string{"shell"}, c.Keywords())
	assert.True(t, c.API.News.Enabled)
	assert.Equal(t, "price_logs", c.Monitoring.PriceLogDir)
}

func TestLoadConfigRejectsBadInterval(t *testing.T) {
	p := writeFile(t, "config.yaml", "trading:\n  interval: 7m\n")

	_, err := LoadConfig(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Interval")
}

func TestLoadConfigEnvOverridesSecrets(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-env")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	p := writeFile(t, "config.json", `{"api": {"news": {"deepseek_api_key": "sk-file"}}}`)

	c, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", c.API.News.DeepSeekAPIKey)
	assert.Equal(t, "42", c.API.Telegram.ChatID)
}

func TestLoadOrCreateWritesDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "config.json")

	c, created, err := LoadOrCreate(p)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "SHELLUSDT", c.Trading.Symbol)

	_, created, err = LoadOrCreate(p)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestHandleSnapshotIsolation(t *testing.T) {
	h := NewHandle(Default())

	snap := h.Snapshot()
	snap.Trading.StopLossPercent = 50
	snap.Monitoring.RSSKeywords = append(snap.Monitoring.RSSKeywords, "mutated")

	fresh := h.Snapshot()
	assert.Equal(t, 5.0, fresh.Trading.StopLossPercent)
	assert.Empty(t, fresh.Monitoring.RSSKeywords)
}

func TestHandleUpdateValidates(t *testing.T) {
	h := NewHandle(Default())

	err := h.Update(func(c *Config) { c.Trading.SentimentInfluenceWeight = 3 })
	require.Error(t, err)
	assert.Equal(t, 0.5, h.Snapshot().Trading.SentimentInfluenceWeight)

	require.NoError(t, h.Update(func(c *Config) { c.Trading.SentimentInfluenceWeight = 0.8 }))
	assert.Equal(t, 0.8, h.Snapshot().Trading.SentimentInfluenceWeight)
}
