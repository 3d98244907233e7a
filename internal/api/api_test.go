package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoWithRetryRecoversFromServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient()
	req := NewRequest(http.MethodGet, srv.URL).WithContext(context.Background())
	resp, err := c.DoWithRetry(req, &RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, Retryable: Transient})
	require.NoError(t, err)

	var out struct{ OK bool }
	require.NoError(t, resp.ParseJSON(&out))
	assert.True(t, out.OK)
	assert.EqualValues(t, 3, calls.Load())
}

func TestDoWithRetryStopsOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient()
	req := NewRequest(http.MethodGet, srv.URL)
	_, err := c.DoWithRetry(req, &RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, Retryable: Transient})

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.EqualValues(t, 1, calls.Load())
}

func TestWithQueryEncodesParams(t *testing.T) {
	req := NewRequest(http.MethodGet, "https://example.com/search?lang=en").
		WithQuery(map[string]string{"q": "MyShell OR SHELL", "max": "3"})

	assert.Contains(t, req.URL, "lang=en")
	assert.Contains(t, req.URL, "max=3")
	assert.Contains(t, req.URL, "q=MyShell+OR+SHELL")
}

func TestMultipartRequestCarriesFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, os.WriteFile(p, []byte("png-bytes"), 0o600))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "42", r.FormValue("chat_id"))
		f, hdr, err := r.FormFile("photo")
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "chart.png", hdr.Filename)
		assert.Equal(t, "png-bytes", string(b))
	}))
	defer srv.Close()

	req, err := NewMultipartRequest(context.Background(), srv.URL, map[string]string{"chat_id": "42"}, "photo", p)
	require.NoError(t, err)
	_, err = NewClient().Do(req)
	require.NoError(t, err)
}

func TestRedactHidesSecrets(t *testing.T) {
	assert.Equal(t, "https://api.telegram.org/bot***/sendMessage", redact("https://api.telegram.org/bot123:abc/sendMessage"))
	assert.NotContains(t, redact("https://gnews.io/api/v4/search?q=x&token=secret"), "secret")
}

func TestTransportErrorDoesNotLeakSecrets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewClient(WithTimeout(time.Second))

	_, err := c.Do(NewRequest(http.MethodGet, base+"/api/v4/search?q=SHELL+coin&token=SUPERSECRETKEY"))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SUPERSECRETKEY")
	assert.Contains(t, err.Error(), "HTTP request failed")

	_, err = c.Do(NewRequest(http.MethodPost, base+"/bot123:TOKENVALUE/sendMessage"))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "TOKENVALUE")
	assert.Contains(t, err.Error(), "/bot***/sendMessage")
}
