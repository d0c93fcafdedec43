package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/modelcmp/internal/aggregation"
	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/internal/scheduler"
	"github.com/wonny/modelcmp/pkg/logger"
)

// Batcher runs multi-symbol comparisons (*aggregation.Aggregator)
type Batcher interface {
	CompareMultiple(ctx context.Context, req aggregation.BatchRequest, progress chan<- contracts.ProgressEvent) (*contracts.AggregateComparison, error)
}

// AggregateStore persists batch results (*artifacts.RunRepository)
type AggregateStore interface {
	SaveAggregate(ctx context.Context, agg *contracts.AggregateComparison) error
}

// BatchCompareJob compares the watchlist after market close
// ⭐ SSOT: 정기 배치 비교 스케줄은 이 Job에서만
type BatchCompareJob struct {
	batcher  Batcher
	store    AggregateStore // nil 이면 저장 생략
	request  aggregation.BatchRequest
	schedule string
	history  int // 조회 기간 (일)
	now      func() time.Time
	logger   *logger.Logger
}

// NewBatchCompareJob creates the job; template carries specs, dataset params and metric
func NewBatchCompareJob(batcher Batcher, store AggregateStore, template aggregation.BatchRequest, schedule string, historyDays int, log *logger.Logger) *BatchCompareJob {
	return &BatchCompareJob{
		batcher:  batcher,
		store:    store,
		request:  template,
		schedule: schedule,
		history:  historyDays,
		now:      time.Now,
		logger:   log,
	}
}

// Name returns the job name
func (j *BatchCompareJob) Name() string {
	return "batch_compare"
}

// Schedule returns the cron schedule (weekdays 7 PM by default)
func (j *BatchCompareJob) Schedule() string {
	return j.schedule
}

// Run executes the batch comparison; a partial aggregate is saved and reported even on error
func (j *BatchCompareJob) Run(ctx context.Context) (scheduler.Report, error) {
	if len(j.request.Symbols) == 0 {
		return scheduler.Report{}, fmt.Errorf("%w: watchlist is empty", contracts.ErrInvalidInput)
	}

	req := j.request
	req.End = j.now()
	req.Start = req.End.AddDate(0, 0, -j.history)

	j.logger.WithFields(map[string]interface{}{
		"symbols": len(req.Symbols),
		"start":   req.Start.Format("2006-01-02"),
		"end":     req.End.Format("2006-01-02"),
	}).Info("Starting scheduled batch comparison")

	agg, err := j.batcher.CompareMultiple(ctx, req, nil)
	report := reportOf(agg, len(req.Symbols))
	if agg != nil && j.store != nil {
		if serr := j.store.SaveAggregate(context.WithoutCancel(ctx), agg); serr != nil {
			return report, fmt.Errorf("save aggregate: %w", serr)
		}
	}
	if err != nil {
		return report, fmt.Errorf("batch compare: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":    agg.RunID,
		"succeeded": agg.SymbolsSucceeded,
		"failed":    len(agg.FailedSymbols),
	}).Info("Scheduled batch comparison completed")

	return report, nil
}

// reportOf converts an aggregate into a scheduler report; nil means nothing ran
func reportOf(agg *contracts.AggregateComparison, requested int) scheduler.Report {
	if agg == nil {
		return scheduler.Report{Symbols: requested}
	}
	report := scheduler.Report{
		RunID:     agg.RunID,
		Symbols:   agg.SymbolsAttempted,
		Succeeded: agg.SymbolsSucceeded,
		Cancelled: agg.Cancelled,
	}
	for _, f := range agg.FailedSymbols {
		report.FailedSymbols = append(report.FailedSymbols, f.Symbol)
	}
	return report
}
