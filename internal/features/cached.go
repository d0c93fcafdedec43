package features

import (
	"context"
	"time"

	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/pkg/logger"
	"github.com/wonny/modelcmp/pkg/redis"
)

// Cached wraps a Provider with a Redis read-through cache
type Cached struct {
	next   Provider
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewCached creates a cached provider
func NewCached(next Provider, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *Cached {
	return &Cached{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: log.Component("features"),
	}
}

// GetFeatureRows implements Provider
func (c *Cached) GetFeatureRows(ctx context.Context, symbol string, start, end time.Time) (*contracts.FeatureTable, error) {
	key := redis.FeatureRowsKey(symbol, start.Format(DateLayout), end.Format(DateLayout))

	var table contracts.FeatureTable
	hit := true
	err := c.cache.GetOrSet(ctx, key, &table, c.ttl, func() (interface{}, error) {
		hit = false
		return c.next.GetFeatureRows(ctx, symbol, start, end)
	})
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"rows":   len(table.Rows),
		"hit":    hit,
	}).Debug("Feature rows loaded")

	return &table, nil
}
