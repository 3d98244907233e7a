package deepseek

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shell-tracker/internal/llm"
	"shell-tracker/internal/store"
)

func TestCompleteSendsChatRequest(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  情感: positive\n"}}]}`))
	}))
	defer srv.Close()

	c := New(store.NewsConfig{DeepSeekAPIKey: "sk-test", DeepSeekAPIURL: srv.URL})
	out, err := c.Complete(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, "情感: positive", out)
	assert.Equal(t, Model, got.Model)
	assert.Equal(t, 0.3, got.Temperature)
	assert.Equal(t, 500, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[0].Content)
}

func TestCompleteMissingChoicesIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := New(store.NewsConfig{DeepSeekAPIURL: srv.URL}).Complete(context.Background(), "x")
	assert.ErrorIs(t, err, llm.ErrMalformedResponse)
}

func TestCompleteHTTPErrorIsNotMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(store.NewsConfig{DeepSeekAPIURL: srv.URL}).Complete(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, llm.ErrMalformedResponse)
}
