package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/modelcmp/internal/features"
	"github.com/wonny/modelcmp/internal/scheduler"
	"github.com/wonny/modelcmp/pkg/logger"
)

// FeatureWarmupJob loads the watchlist's feature rows ahead of the batch run so
// the cached provider serves them from Redis
type FeatureWarmupJob struct {
	provider  features.Provider
	watchlist []string
	schedule  string
	history   int
	now       func() time.Time
	logger    *logger.Logger
}

// NewFeatureWarmupJob creates a new warmup job
func NewFeatureWarmupJob(provider features.Provider, watchlist []string, schedule string, historyDays int, log *logger.Logger) *FeatureWarmupJob {
	return &FeatureWarmupJob{
		provider:  provider,
		watchlist: watchlist,
		schedule:  schedule,
		history:   historyDays,
		now:       time.Now,
		logger:    log,
	}
}

// Name returns the job name
func (j *FeatureWarmupJob) Name() string {
	return "feature_warmup"
}

// Schedule returns the cron schedule
func (j *FeatureWarmupJob) Schedule() string {
	return j.schedule
}

// Run loads every symbol; failures are counted, not fatal, unless all symbols fail
func (j *FeatureWarmupJob) Run(ctx context.Context) (scheduler.Report, error) {
	// 배치 비교와 같은 날짜 범위 (캐시 키 일치)
	end := j.now()
	start := end.AddDate(0, 0, -j.history)

	report := scheduler.Report{Symbols: len(j.watchlist)}
	for _, symbol := range j.watchlist {
		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			return report, err
		}
		table, err := j.provider.GetFeatureRows(ctx, symbol, start, end)
		if err != nil {
			report.FailedSymbols = append(report.FailedSymbols, symbol)
			j.logger.WithField("symbol", symbol).WithError(err).Warn("Feature warmup failed")
			continue
		}
		report.Succeeded++
		j.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"rows":   len(table.Rows),
		}).Debug("Features warmed")
	}

	j.logger.WithFields(map[string]interface{}{
		"loaded": report.Succeeded,
		"failed": len(report.FailedSymbols),
	}).Info("Feature warmup completed")

	if report.Succeeded == 0 && len(report.FailedSymbols) > 0 {
		return report, fmt.Errorf("feature warmup: all %d symbols failed", len(report.FailedSymbols))
	}
	return report, nil
}
