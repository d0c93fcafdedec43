package commands

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/modelcmp/internal/aggregation"
	"github.com/wonny/modelcmp/internal/artifacts"
	"github.com/wonny/modelcmp/internal/compareconfig"
	"github.com/wonny/modelcmp/internal/comparison"
	"github.com/wonny/modelcmp/internal/dataset"
	"github.com/wonny/modelcmp/internal/features"
	"github.com/wonny/modelcmp/internal/interpretation"
	"github.com/wonny/modelcmp/internal/models"
	"github.com/wonny/modelcmp/internal/telemetry"
	"github.com/wonny/modelcmp/pkg/config"
	"github.com/wonny/modelcmp/pkg/database"
	"github.com/wonny/modelcmp/pkg/logger"
	"github.com/wonny/modelcmp/pkg/redis"
)

// app holds the wired comparison engine shared by every command
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	profile *compareconfig.Profile
	metrics *telemetry.Metrics

	db    *database.DB  // nil 이면 DB 미사용
	redis *redis.Client // 비활성 클라이언트일 수 있음
	cache *redis.Cache

	provider     features.Provider
	factory      *models.Factory
	orchestrator *comparison.Orchestrator
	aggregator   *aggregation.Aggregator
	recommender  *aggregation.Recommender

	runs      *artifacts.RunRepository // nil 이면 저장 안 함
	artifacts *artifacts.Store
}

// newApp loads config and the comparison profile and wires every component
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	path := cfg.Comparison.ProfilePath
	if profilePath != "" {
		path = profilePath
	}
	profile, err := compareconfig.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	for _, w := range compareconfig.Warn(profile) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	a := &app{cfg: cfg, log: log, profile: profile}
	if cfg.MetricsEnabled {
		a.metrics = telemetry.New()
	}

	if cfg.NeedsDatabase() {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		log.Info("Connected to database")
	}

	rdb, err := redis.New(cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = rdb
	a.cache = redis.NewCache(rdb, "modelcmp")

	pool := a.pool()
	a.provider, err = features.NewProvider(cfg, pool, rdb, log)
	if err != nil {
		a.close()
		return nil, err
	}

	specs, err := profile.Specs()
	if err != nil {
		a.close()
		return nil, err
	}
	a.factory, err = models.NewFactory(specs...)
	if err != nil {
		a.close()
		return nil, err
	}

	opts, err := profile.Options()
	if err != nil {
		a.close()
		return nil, err
	}

	a.orchestrator = comparison.NewOrchestrator(
		a.provider,
		dataset.NewBuilder(profile.Dataset, log),
		a.factory,
		interpretation.NewEngine(log),
		opts,
		a.metrics,
		log,
	)
	a.aggregator = aggregation.NewAggregator(a.orchestrator, profile.Runtime.SymbolParallelism, a.metrics, log)
	a.recommender = aggregation.NewRecommender(a.provider, a.cache, log)

	if pool != nil && cfg.Comparison.PersistRuns {
		a.runs = artifacts.NewRunRepository(pool)
	}
	if pool != nil {
		a.artifacts = artifacts.NewStore(pool)
	}

	return a, nil
}

func (a *app) pool() *pgxpool.Pool {
	if a.db == nil {
		return nil
	}
	return a.db.Pool
}

// close releases the database pool and the Redis client
func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
