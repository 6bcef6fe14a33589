package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jfandino/boe-harvester/internal/fetch"
)

func newClient(maxRetries int) *fetch.Client {
	return fetch.New(fetch.Config{MaxRetries: maxRetries}, zap.NewNop())
}

func TestFetchSuccess(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		assert.Equal(t, "application/xml", r.Header.Get("Accept"))
		w.Write([]byte(`<response><status><code>200</code></status></response>`)) //nolint:errcheck
	}))
	defer srv.Close()

	result := newClient(3).Fetch(context.Background(), "20240101", srv.URL)
	assert.Equal(t, fetch.OutcomeSuccess, result.Outcome)
	assert.Contains(t, string(result.Body), "<response>")
	assert.Equal(t, int32(1), attempts.Load(), "success should take exactly one attempt")
}

func TestFetchNotFoundShortCircuits(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	result := newClient(5).Fetch(context.Background(), "20240101", srv.URL)
	assert.Equal(t, fetch.OutcomeNotFound, result.Outcome)
	assert.Nil(t, result.Body)
	assert.Equal(t, int32(1), attempts.Load(), "404 must not be retried")
}

func TestFetchRetryBound(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	result := newClient(3).Fetch(context.Background(), "20240101", srv.URL)
	assert.Equal(t, fetch.OutcomeExhausted, result.Outcome)
	assert.Equal(t, int32(4), attempts.Load(), "expected max_retries+1 attempts")
}

func TestFetchZeroRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	result := newClient(0).Fetch(context.Background(), "20240101", srv.URL)
	assert.Equal(t, fetch.OutcomeExhausted, result.Outcome)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestFetchNonXMLBodyIsRetryable(t *testing.T) {
	// Rate limiting sometimes shows up as a 200 with an HTML error page;
	// the client must keep retrying and succeed once real XML appears.
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.Write([]byte("Too many requests, slow down")) //nolint:errcheck
			return
		}
		w.Write([]byte(`<response><status><code>200</code></status></response>`)) //nolint:errcheck
	}))
	defer srv.Close()

	result := newClient(3).Fetch(context.Background(), "20240101", srv.URL)
	assert.Equal(t, fetch.OutcomeSuccess, result.Outcome)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestFetchEmptyBodyIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := newClient(1).Fetch(context.Background(), "20240101", srv.URL)
	assert.Equal(t, fetch.OutcomeExhausted, result.Outcome)
}

func TestFetchConnectionErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing is listening anymore

	result := newClient(2).Fetch(context.Background(), "20240101", srv.URL)
	assert.Equal(t, fetch.OutcomeExhausted, result.Outcome)
}

func TestFetchCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newClient(10).Fetch(ctx, "20240101", srv.URL)
	require.Equal(t, fetch.OutcomeExhausted, result.Outcome)
}
