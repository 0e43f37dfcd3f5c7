package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "phototimer/pkg/errors"
	"phototimer/pkg/logger"
	"phototimer/pkg/retry"
)

func fastRetry(attempts int) *retry.Config {
	return &retry.Config{
		MaxAttempts: attempts,
		Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     retry.DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

func newTestClient(t *testing.T, opts ...Option) (*Client, *logger.TestLogger) {
	t.Helper()
	log := logger.NewTestLogger()
	return NewClient(5*time.Second, "phototimer-test", log, opts...), log
}

func TestPageFetcherSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "phototimer-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<img src="a.png">`))
	}))
	defer server.Close()

	client, log := newTestClient(t)
	body, err := NewPageFetcher(client, 1024).Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, `<img src="a.png">`, body)
	assert.True(t, log.HasMessage("HTTP request completed"))
}

func TestPageFetcherStatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		wantType errs.ErrorType
	}{
		{http.StatusNotFound, errs.ErrorTypeNotFound},
		{http.StatusForbidden, errs.ErrorTypeClient},
		{http.StatusTooManyRequests, errs.ErrorTypeRateLimit},
		{http.StatusBadGateway, errs.ErrorTypeServerError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client, _ := newTestClient(t)
			_, err := NewPageFetcher(client, 1024).Fetch(context.Background(), server.URL)

			var fetchErr *errs.FetchError
			require.True(t, errors.As(err, &fetchErr))
			assert.Equal(t, server.URL, fetchErr.URL)
			require.NotNil(t, fetchErr.Err)
			assert.Equal(t, tt.wantType, fetchErr.Err.Type)
			assert.Equal(t, tt.status, fetchErr.Err.Code)
		})
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, _ := newTestClient(t, WithRetry(fastRetry(3)))
	resp, err := client.Get(context.Background(), server.URL, 1024)

	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, _ := newTestClient(t, WithRetry(fastRetry(3)))
	_, err := client.Get(context.Background(), server.URL, 1024)

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, errs.ErrorTypeNotFound, errs.TypeOf(err))
}

func TestClientBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer server.Close()

	client, _ := newTestClient(t)

	_, err := client.Get(context.Background(), server.URL, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 10 bytes")

	resp, err := client.Get(context.Background(), server.URL, 100)
	require.NoError(t, err)
	assert.Len(t, resp.Body, 100)
}

func TestClientRejectsNonHTTPURL(t *testing.T) {
	client, _ := newTestClient(t)

	for _, raw := range []string{"", "ftp://example.com/a", "not a url", "file:///etc/passwd"} {
		_, err := client.Get(context.Background(), raw, 10)
		assert.Equal(t, errs.ErrorTypeClient, errs.TypeOf(err), raw)
	}
}

func TestPageFetcherNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, _ := newTestClient(t)
	_, err := NewPageFetcher(client, 1024).Fetch(context.Background(), url)

	var fetchErr *errs.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, errs.ErrorTypeNetwork, fetchErr.Err.Type)
}

func TestPageFetcherCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client, _ := newTestClient(t)
	_, err := NewPageFetcher(client, 1024).Fetch(ctx, server.URL)

	var fetchErr *errs.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "cancelled", fetchErr.Reason)
}
