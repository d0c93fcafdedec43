package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/modelcmp/pkg/logger"
)

type payload struct {
	Symbol string `json:"symbol"`
	Rows   int    `json:"rows"`
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(payload{Symbol: "005930", Rows: 3})
	}))
	defer server.Close()

	client := New("test", 5*time.Second, logger.Nop())

	var got payload
	require.NoError(t, client.GetJSON(context.Background(), server.URL, &got))
	assert.Equal(t, payload{Symbol: "005930", Rows: 3}, got)
}

func TestPostJSONRetriesWithBody(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in payload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "A", in.Symbol)

		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(in)
	}))
	defer server.Close()

	client := New("test", 5*time.Second, logger.Nop()).WithRetry(3, 5*time.Millisecond)

	var got payload
	require.NoError(t, client.PostJSON(context.Background(), server.URL, payload{Symbol: "A"}, &got))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, "A", got.Symbol)
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unknown symbol", http.StatusNotFound)
	}))
	defer server.Close()

	client := New("test", 5*time.Second, logger.Nop()).WithRetry(3, time.Millisecond)

	err := client.GetJSON(context.Background(), server.URL, nil)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCircuitBreakerOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New("flaky", 5*time.Second, logger.Nop()).DisableRetry()

	for i := 0; i < 5; i++ {
		require.Error(t, client.GetJSON(context.Background(), server.URL, nil))
	}

	err := client.GetJSON(context.Background(), server.URL, nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, "open", client.BreakerState())
}

func TestRateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New("slow", 5*time.Second, logger.Nop()).WithRateLimit(0.001, 1)
	require.NoError(t, client.GetJSON(context.Background(), server.URL, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, client.GetJSON(ctx, server.URL, nil))
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(500))
	assert.True(t, IsRetryableError(503))
	assert.True(t, IsRetryableError(429))
	assert.False(t, IsRetryableError(404))
	assert.False(t, IsRetryableError(200))
}
