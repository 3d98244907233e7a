// Package telegram delivers status reports through the Telegram bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"shell-tracker/internal/api"
	"shell-tracker/internal/interfaces"
	"shell-tracker/internal/logger"
	"shell-tracker/internal/store"
	"shell-tracker/internal/types"
)

const (
	maxMessageLen = 4096
	partGap       = 500 * time.Millisecond
)

// Bot sends messages and photos to a single chat.
type Bot struct {
	client  *api.Client
	baseURL string
	token   string
	chatID  string
	retry   *api.RetryConfig
	gap     time.Duration
}

var _ interfaces.Notifier = (*Bot)(nil)

type Option func(*Bot)

func withRetry(cfg *api.RetryConfig) Option {
	return func(b *Bot) { b.retry = cfg }
}

// withPartGap sets the pause between the parts of a split message.
func withPartGap(d time.Duration) Option {
	return func(b *Bot) { b.gap = d }
}

// New returns ErrNotConfigured when the token or chat id is missing.
func New(cfg store.TelegramConfig, opts ...Option) (*Bot, error) {
	if cfg.Token == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram token or chat id: %w", types.ErrNotConfigured)
	}
	base := cfg.APIURL
	if base == "" {
		base = store.DefaultTelegramURL
	}
	b := &Bot{
		client:  api.NewClient(api.WithTimeout(60 * time.Second)),
		baseURL: strings.TrimSuffix(base, "/"),
		token:   cfg.Token,
		chatID:  cfg.ChatID,
		retry: &api.RetryConfig{
			MaxAttempts: 3,
			InitialWait: 2 * time.Second,
			Retryable:   api.Transient,
		},
		gap: partGap,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Bot) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", b.baseURL, b.token, method)
}

// SendMessage splits text into parts of at most 4096 characters, breaking
// at the last newline that fits.
func (b *Bot) SendMessage(ctx context.Context, text string) error {
	parts := splitMessage(text, maxMessageLen)
	for i, part := range parts {
		form := url.Values{"chat_id": {b.chatID}, "text": {part}}
		req := api.NewRequest(http.MethodPost, b.endpoint("sendMessage")).
			WithContext(ctx).
			WithRawBody([]byte(form.Encode()), "application/x-www-form-urlencoded")
		if _, err := b.client.DoWithRetry(req, b.retry); err != nil {
			return fmt.Errorf("telegram sendMessage part %d/%d: %w", i+1, len(parts), err)
		}
		if len(parts) > 1 && i < len(parts)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.gap):
			}
		}
	}
	logger.Debug(ctx, "Telegram message sent", "parts", len(parts))
	return nil
}

// SendPhoto uploads the file at path. A missing file fails without retrying.
func (b *Bot) SendPhoto(ctx context.Context, path, caption string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("telegram photo %s: %w", path, err)
	}
	req, err := api.NewMultipartRequest(ctx, b.endpoint("sendPhoto"),
		map[string]string{"chat_id": b.chatID, "caption": caption}, "photo", path)
	if err != nil {
		return fmt.Errorf("telegram photo %s: %w", path, err)
	}
	if _, err := b.client.DoWithRetry(req, b.retry); err != nil {
		return fmt.Errorf("telegram sendPhoto: %w", err)
	}
	logger.Debug(ctx, "Telegram photo sent", "path", path)
	return nil
}

// IsMissingFile reports whether err came from a photo that does not exist.
func IsMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func splitMessage(text string, limit int) []string {
	r := []rune(text)
	if len(r) <= limit {
		return []string{text}
	}
	var parts []string
	start := 0
	for start < len(r) {
		end := start + limit
		if end > len(r) {
			end = len(r)
		}
		cut := -1
		for i := end - 1; i > start; i-- {
			if r[i] == '\n' {
				cut = i
				break
			}
		}
		if cut <= start {
			cut = end
		}
		if part := strings.TrimSpace(string(r[start:cut])); part != "" {
			parts = append(parts, part)
		}
		start = cut
		if start < len(r) && r[start] == '\n' {
			start++
		}
	}
	return parts
}
