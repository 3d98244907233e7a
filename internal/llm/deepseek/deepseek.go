package deepseek

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shell-tracker/internal/api"
	"shell-tracker/internal/interfaces"
	"shell-tracker/internal/llm"
	"shell-tracker/internal/store"
	"shell-tracker/internal/trace"
)

const (
	Model       = "deepseek-chat"
	Temperature = 0.3
	MaxTokens   = 500
	Timeout     = 45 * time.Second
)

// Client calls a DeepSeek-compatible chat-completion endpoint.
type Client struct {
	url    string
	apiKey string
	http   *api.Client
}

var _ interfaces.Completer = (*Client)(nil)

func New(cfg store.NewsConfig, opts ...api.ClientOption) *Client {
	url := cfg.DeepSeekAPIURL
	if url == "" {
		url = store.DefaultDeepSeekURL
	}
	opts = append([]api.ClientOption{api.WithTimeout(Timeout)}, opts...)
	return &Client{
		url:    url,
		apiKey: cfg.DeepSeekAPIKey,
		http:   api.NewClient(opts...),
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Complete returns choices[0].message.content. Transport failures and HTTP
// errors are returned as-is; undecodable replies wrap llm.ErrMalformedResponse.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "deepseek-api-call")
	defer span.End()

	body := chatRequest{
		Model:       Model,
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
	}
	resp, err := c.http.POST(ctx, c.url, body, map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	})
	if err != nil {
		return "", err
	}

	var r chatResponse
	if err := resp.ParseJSON(&r); err != nil {
		return "", fmt.Errorf("%w: %v", llm.ErrMalformedResponse, err)
	}
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("%w: 'choices' missing", llm.ErrMalformedResponse)
	}
	return strings.TrimSpace(r.Choices[0].Message.Content), nil
}
