package features

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/pkg/config"
	"github.com/wonny/modelcmp/pkg/httputil"
	"github.com/wonny/modelcmp/pkg/logger"
	"github.com/wonny/modelcmp/pkg/redis"
)

// DateLayout is the date format used in cache keys and remote queries
const DateLayout = "2006-01-02"

// Provider returns time-ascending feature rows of a symbol within [start, end].
// No rows is an empty table, not an error.
type Provider interface {
	GetFeatureRows(ctx context.Context, symbol string, start, end time.Time) (*contracts.FeatureTable, error)
}

// NewProvider builds the provider selected by FEATURE_SOURCE, wrapped in the
// Redis cache when Redis is enabled and a TTL is configured
func NewProvider(cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client, log *logger.Logger) (Provider, error) {
	var p Provider

	switch cfg.Features.Source {
	case config.FeatureSourcePostgres:
		if pool == nil {
			return nil, fmt.Errorf("feature source %s requires a database pool", cfg.Features.Source)
		}
		p = NewRepository(pool)
	case config.FeatureSourceHTTP:
		client := httputil.New("feature-service", cfg.Features.Timeout, log).
			WithRateLimit(cfg.Features.RPS, cfg.Features.Burst)
		p = NewRemote(cfg.Features.BaseURL, client)
	case config.FeatureSourceSynthetic:
		p = NewSynthetic(DefaultSyntheticConfig())
	default:
		return nil, fmt.Errorf("unknown feature source %q", cfg.Features.Source)
	}

	if rdb != nil && rdb.Enabled() && cfg.Features.CacheTTL > 0 {
		p = NewCached(p, redis.NewCache(rdb, "modelcmp"), cfg.Features.CacheTTL, log)
	}
	return p, nil
}
