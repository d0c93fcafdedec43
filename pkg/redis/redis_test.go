package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/modelcmp/pkg/config"
)

type cachedRow struct {
	Symbol string  `json:"symbol"`
	Close  float64 `json:"close"`
}

func TestNewClient_Disabled(t *testing.T) {
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
}

func TestRateLimiter_Disabled(t *testing.T) {
	client, _ := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	limiter := NewRateLimiter(client, "test")

	cfg := APIRateLimit("127.0.0.1", 30)
	allowed, remaining, err := limiter.Allow(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 30, remaining)
	assert.Equal(t, "api:127.0.0.1", cfg.Key)
}

func TestCache_GetHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewCache(NewFromClient(db), "modelcmp")

	mock.ExpectGet("modelcmp:cache:row").SetVal(`{"symbol":"005930","close":71000}`)

	var dest cachedRow
	found, err := cache.Get(context.Background(), "row", &dest)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "005930", dest.Symbol)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_GetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewCache(NewFromClient(db), "modelcmp")

	mock.ExpectGet("modelcmp:cache:missing").RedisNil()

	var dest cachedRow
	found, err := cache.Get(context.Background(), "missing", &dest)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_GetOrSetPopulates(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewCache(NewFromClient(db), "modelcmp")

	mock.ExpectGet("modelcmp:cache:k").RedisNil()
	mock.ExpectSet("modelcmp:cache:k", []byte(`{"symbol":"A","close":1.5}`), time.Hour).SetVal("OK")

	calls := 0
	var dest cachedRow
	err := cache.GetOrSet(context.Background(), "k", &dest, time.Hour, func() (interface{}, error) {
		calls++
		return cachedRow{Symbol: "A", Close: 1.5}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1.5, dest.Close)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_GetOrSetPropagatesLoaderError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewCache(NewFromClient(db), "modelcmp")

	mock.ExpectGet("modelcmp:cache:k").RedisNil()

	var dest cachedRow
	err := cache.GetOrSet(context.Background(), "k", &dest, time.Hour, func() (interface{}, error) {
		return nil, errors.New("db down")
	})
	assert.EqualError(t, err, "db down")
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "features:005930:2024-01-01:2024-12-31", FeatureRowsKey("005930", "2024-01-01", "2024-12-31"))
	assert.Equal(t, "recommend:005930:2024-06-03", RecommendationKey("005930", "2024-06-03"))
	assert.Equal(t, "job:abc", JobStatusKey("abc"))
}
