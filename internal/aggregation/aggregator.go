package aggregation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/modelcmp/internal/comparison"
	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/internal/dataset"
	"github.com/wonny/modelcmp/internal/models"
	"github.com/wonny/modelcmp/internal/telemetry"
	"github.com/wonny/modelcmp/pkg/logger"
)

// Comparer runs a single-symbol comparison (*comparison.Orchestrator)
type Comparer interface {
	Compare(ctx context.Context, req comparison.Request, progress chan<- contracts.ProgressEvent) (*contracts.ComparisonRun, error)
}

// BatchRequest describes a multi-symbol comparison
type BatchRequest struct {
	Symbols    []string
	Start      time.Time
	End        time.Time
	Specs      []models.Spec
	Dataset    *dataset.Params
	BestMetric contracts.Metric
}

// Aggregator runs comparisons across symbols and folds the runs
// ⭐ SSOT: 다종목 집계는 여기서만
type Aggregator struct {
	comparer    Comparer
	parallelism int
	metrics     *telemetry.Metrics
	logger      *logger.Logger
}

// NewAggregator creates an aggregator running up to parallelism symbols at once
func NewAggregator(comparer Comparer, parallelism int, metrics *telemetry.Metrics, log *logger.Logger) *Aggregator {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Aggregator{
		comparer:    comparer,
		parallelism: parallelism,
		metrics:     metrics,
		logger:      log.Component("aggregation"),
	}
}

// fold is the mutable state behind one CompareMultiple call
type fold struct {
	mu        sync.Mutex
	agg       *contracts.AggregateComparison
	acc       map[string]map[contracts.Metric]*accumulator
	order     map[string]int
	completed int
}

// CompareMultiple compares every symbol independently.
// Failed symbols are listed and excluded from statistics; the batch itself only
// fails when no symbol succeeded. On cancellation, symbols not yet started are
// skipped and the partial aggregate is returned together with ctx.Err().
func (a *Aggregator) CompareMultiple(ctx context.Context, req BatchRequest, progress chan<- contracts.ProgressEvent) (*contracts.AggregateComparison, error) {
	symbols := dedupe(req.Symbols)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: no symbols", contracts.ErrInvalidInput)
	}
	metric := req.BestMetric
	if metric == "" {
		metric = comparison.DefaultMetric
	}

	startedAt := time.Now()
	f := &fold{
		agg: &contracts.AggregateComparison{
			RunID:          uuid.New().String(),
			StartedAt:      startedAt,
			BestMetric:     metric,
			FailedSymbols:  []contracts.SymbolFailure{},
			ModelFailures:  []contracts.SymbolModelFailure{},
			Wins:           make(map[string]int),
			Stats:          make(map[string]map[contracts.Metric]contracts.MetricStats),
			TradableCounts: make(map[string]int),
		},
		acc:   make(map[string]map[contracts.Metric]*accumulator),
		order: make(map[string]int, len(symbols)),
	}
	for i, s := range symbols {
		f.order[s] = i
	}

	a.logger.WithFields(map[string]interface{}{
		"run_id":  f.agg.RunID,
		"symbols": len(symbols),
		"metric":  metric,
	}).Info("Starting batch comparison")

	var g errgroup.Group
	g.SetLimit(a.parallelism)

	for _, symbol := range symbols {
		// 종목 단위 사이에서만 취소 확인
		if ctx.Err() != nil {
			break
		}
		symbol := symbol
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			run, err := a.comparer.Compare(ctx, comparison.Request{
				Symbol:     symbol,
				Start:      req.Start,
				End:        req.End,
				Specs:      req.Specs,
				Dataset:    req.Dataset,
				BestMetric: metric,
			}, nil)
			a.add(ctx, f, symbol, len(symbols), run, err, progress)
			return nil
		})
	}
	_ = g.Wait()

	agg := a.finish(f, startedAt)

	if err := ctx.Err(); err != nil {
		agg.Cancelled = true
		a.logger.WithFields(map[string]interface{}{
			"run_id":    agg.RunID,
			"succeeded": agg.SymbolsSucceeded,
			"attempted": agg.SymbolsAttempted,
		}).Warn("Batch comparison cancelled")
		return agg, err
	}

	emit(ctx, progress, contracts.ProgressEvent{
		Stage:     contracts.StageCompleted,
		Completed: agg.SymbolsAttempted,
		Total:     len(symbols),
		Message:   fmt.Sprintf("%d of %d symbols succeeded", agg.SymbolsSucceeded, len(symbols)),
	})

	a.logger.WithFields(map[string]interface{}{
		"run_id":      agg.RunID,
		"succeeded":   agg.SymbolsSucceeded,
		"failed":      len(agg.FailedSymbols),
		"duration_ms": agg.Duration.Milliseconds(),
	}).Info("Batch comparison completed")

	if agg.SymbolsSucceeded == 0 {
		return agg, fmt.Errorf("%w: %d symbols attempted", contracts.ErrAllSymbolsFailed, agg.SymbolsAttempted)
	}
	return agg, nil
}

// add folds one symbol's outcome; the fold is commutative
func (a *Aggregator) add(ctx context.Context, f *fold, symbol string, total int, run *contracts.ComparisonRun, err error, progress chan<- contracts.ProgressEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.completed++
	f.agg.SymbolsAttempted++

	ev := contracts.ProgressEvent{
		Symbol:    symbol,
		Completed: f.completed,
		Total:     total,
	}

	if err != nil {
		kind := contracts.KindOf(err)
		f.agg.FailedSymbols = append(f.agg.FailedSymbols, contracts.SymbolFailure{
			Symbol:  symbol,
			Kind:    kind,
			Message: err.Error(),
		})
		a.metrics.ObserveSymbol(string(kind))
		a.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"kind":   kind,
		}).WithError(err).Warn("Symbol comparison failed")

		ev.Stage = contracts.StageSymbolFailed
		ev.Message = fmt.Sprintf("%s failed: %s", symbol, kind)
		emit(ctx, progress, ev)
		return
	}

	f.agg.SymbolsSucceeded++
	f.agg.Wins[run.BestModel]++
	for _, mf := range run.Failures {
		f.agg.ModelFailures = append(f.agg.ModelFailures, contracts.SymbolModelFailure{Symbol: symbol, ModelFailure: mf})
	}

	for _, name := range run.Models {
		mm := run.Metrics[name]
		if f.acc[name] == nil {
			f.acc[name] = make(map[contracts.Metric]*accumulator)
		}
		for _, m := range contracts.AllMetrics {
			v, ok := mm.Value(m)
			if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			if f.acc[name][m] == nil {
				f.acc[name][m] = &accumulator{}
			}
			f.acc[name][m].add(v)
		}
		if run.Analyses[name].IsTradable {
			f.agg.TradableCounts[name]++
		} else if _, ok := f.agg.TradableCounts[name]; !ok {
			f.agg.TradableCounts[name] = 0
		}
	}
	a.metrics.ObserveSymbol("success")

	ev.Stage = contracts.StageSymbolDone
	ev.Model = run.BestModel
	ev.Message = fmt.Sprintf("%s best model: %s", symbol, run.BestModel)
	emit(ctx, progress, ev)
}

func (a *Aggregator) finish(f *fold, startedAt time.Time) *contracts.AggregateComparison {
	f.mu.Lock()
	defer f.mu.Unlock()

	agg := f.agg
	for model, metrics := range f.acc {
		agg.Stats[model] = make(map[contracts.Metric]contracts.MetricStats, len(metrics))
		for m, acc := range metrics {
			agg.Stats[model][m] = acc.stats()
		}
	}

	// 입력 순서로 정렬 (병렬 완료 순서와 무관하게 동일 결과)
	sort.SliceStable(agg.FailedSymbols, func(i, j int) bool {
		return f.order[agg.FailedSymbols[i].Symbol] < f.order[agg.FailedSymbols[j].Symbol]
	})
	sort.SliceStable(agg.ModelFailures, func(i, j int) bool {
		return f.order[agg.ModelFailures[i].Symbol] < f.order[agg.ModelFailures[j].Symbol]
	})

	agg.Duration = time.Since(startedAt)
	return agg
}

func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func emit(ctx context.Context, progress chan<- contracts.ProgressEvent, ev contracts.ProgressEvent) {
	if progress == nil {
		return
	}
	ev.Timestamp = time.Now()
	select {
	case progress <- ev:
	case <-ctx.Done():
	}
}
