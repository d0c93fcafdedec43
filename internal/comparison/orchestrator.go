package comparison

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/modelcmp/internal/backtest"
	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/internal/dataset"
	"github.com/wonny/modelcmp/internal/evaluation"
	"github.com/wonny/modelcmp/internal/features"
	"github.com/wonny/modelcmp/internal/interpretation"
	"github.com/wonny/modelcmp/internal/models"
	"github.com/wonny/modelcmp/internal/telemetry"
	"github.com/wonny/modelcmp/pkg/logger"
)

// DefaultMetric selects the best model when a request names none
const DefaultMetric = contracts.MetricF1

// Options are the runtime limits of a comparison
type Options struct {
	ModelTimeout time.Duration   // 모델 1개 학습+평가 제한 시간, 기본 5분
	Parallelism  int             // 동시 학습 모델 수, 기본 2
	Backtest     backtest.Config // 시뮬레이터 설정
	ProfileHash  string          // 실행 프로필 해시 (ComparisonRun 에 기록)
}

// DefaultOptions returns a 5 minute model budget and 2 concurrent models
func DefaultOptions() Options {
	return Options{
		ModelTimeout: 5 * time.Minute,
		Parallelism:  2,
		Backtest:     backtest.DefaultConfig(),
	}
}

// Request describes one single-symbol comparison
type Request struct {
	Symbol     string
	Start      time.Time
	End        time.Time
	Specs      []models.Spec    // 비어있으면 factory 기본값
	Dataset    *dataset.Params  // nil 이면 builder 기본값
	BestMetric contracts.Metric // 비어있으면 F1
}

// Result is a comparison run plus the trained models behind it
type Result struct {
	Run    *contracts.ComparisonRun
	Models map[string]*models.TrainedModel
}

// BestTrained returns the trained model selected as best
func (r *Result) BestTrained() (*models.TrainedModel, bool) {
	m, ok := r.Models[r.Run.BestModel]
	return m, ok
}

// Orchestrator trains, backtests, evaluates and grades a set of models for one symbol
// ⭐ SSOT: 단일 종목 모델 비교 흐름은 여기서만
//
// 흐름:
//
//	features → dataset → (train → predict → backtest → metrics → analysis) × N → best model → report
type Orchestrator struct {
	provider    features.Provider
	builder     *dataset.Builder
	factory     *models.Factory
	interpreter *interpretation.Engine
	simulator   *backtest.Simulator
	metrics     *telemetry.Metrics
	opts        Options
	logger      *logger.Logger

	// train 은 모델 하나의 학습/평가 단계 (테스트에서 교체)
	train func(ctx context.Context, ds *dataset.Dataset, spec models.Spec) (*models.TrainedModel, *contracts.ModelMetrics, error)
}

// NewOrchestrator creates a new orchestrator; metrics may be nil
func NewOrchestrator(
	provider features.Provider,
	builder *dataset.Builder,
	factory *models.Factory,
	interpreter *interpretation.Engine,
	opts Options,
	metrics *telemetry.Metrics,
	log *logger.Logger,
) *Orchestrator {
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = DefaultOptions().ModelTimeout
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultOptions().Parallelism
	}

	o := &Orchestrator{
		provider:    provider,
		builder:     builder,
		factory:     factory,
		interpreter: interpreter,
		simulator:   backtest.NewSimulator(opts.Backtest, log),
		metrics:     metrics,
		opts:        opts,
		logger:      log.Component("comparison"),
	}
	o.train = o.trainAndEvaluate
	return o
}

// Options returns the runtime limits
func (o *Orchestrator) Options() Options {
	return o.opts
}

// Factory returns the injected model factory
func (o *Orchestrator) Factory() *models.Factory {
	return o.factory
}

// Compare runs a comparison and returns only the run
func (o *Orchestrator) Compare(ctx context.Context, req Request, progress chan<- contracts.ProgressEvent) (*contracts.ComparisonRun, error) {
	res, err := o.CompareDetailed(ctx, req, progress)
	if err != nil {
		return nil, err
	}
	return res.Run, nil
}

// CompareDetailed runs a comparison.
// Per-model failures are recorded on the run and never abort it; the run fails
// with *contracts.AllModelsFailedError only when no model succeeded. Events are
// sent to progress in order; the channel is never closed by the orchestrator.
func (o *Orchestrator) CompareDetailed(ctx context.Context, req Request, progress chan<- contracts.ProgressEvent) (*Result, error) {
	startedAt := time.Now()

	metric, specs, builder, err := o.prepare(req)
	if err != nil {
		return nil, err
	}

	log := o.logger.WithFields(map[string]interface{}{
		"symbol": req.Symbol,
		"models": len(specs),
	})
	log.Info("Starting comparison")

	// 1. Dataset
	emit(ctx, progress, contracts.ProgressEvent{
		Stage:   contracts.StageDataset,
		Symbol:  req.Symbol,
		Total:   len(specs),
		Message: fmt.Sprintf("Loading features %s ~ %s", req.Start.Format(features.DateLayout), req.End.Format(features.DateLayout)),
	})

	table, err := o.provider.GetFeatureRows(ctx, req.Symbol, req.Start, req.End)
	if err != nil {
		o.metrics.ObserveComparison(string(contracts.KindOf(err)))
		return nil, fmt.Errorf("load features for %s: %w", req.Symbol, err)
	}
	if table.Symbol == "" {
		table.Symbol = req.Symbol
	}

	ds, err := builder.Build(table)
	if err != nil {
		o.metrics.ObserveComparison(string(contracts.KindOf(err)))
		log.WithError(err).Warn("Dataset build failed")
		return nil, err
	}

	// 2. Models (병렬, 단일 수집기)
	emit(ctx, progress, contracts.ProgressEvent{
		Stage:   contracts.StageTraining,
		Symbol:  req.Symbol,
		Total:   len(specs),
		Message: fmt.Sprintf("Training %d models on %d rows", len(specs), ds.TrainLen()),
	})

	outcomes, trained := o.runModels(ctx, req.Symbol, ds, specs, progress)

	if err := ctx.Err(); err != nil {
		o.metrics.ObserveComparison(string(contracts.KindCancelled))
		return nil, err
	}

	// 3. Fold
	run := &contracts.ComparisonRun{
		RunID:       uuid.New().String(),
		Symbol:      req.Symbol,
		ProfileHash: o.opts.ProfileHash,
		StartedAt:   startedAt,
		Dataset:     ds.Summary(),
		Models:      []string{},
		Metrics:     make(map[string]contracts.ModelMetrics),
		Analyses:    make(map[string]contracts.ModelAnalysis),
		Failures:    []contracts.ModelFailure{},
		BestMetric:  metric,
	}
	for _, out := range outcomes {
		if out.Err != nil {
			run.Failures = append(run.Failures, out.Failure())
			continue
		}
		analysis := o.interpreter.Analyze(*out.Metrics)
		run.Models = append(run.Models, out.Model)
		run.Metrics[out.Model] = *out.Metrics
		run.Analyses[out.Model] = analysis
		o.metrics.SetModelScore(req.Symbol, out.Model, analysis.Score)
	}

	if len(run.Models) == 0 {
		o.metrics.ObserveComparison(string(contracts.KindAllModelsFailed))
		emit(ctx, progress, contracts.ProgressEvent{
			Stage:     contracts.StageCompleted,
			Symbol:    req.Symbol,
			Completed: len(specs),
			Total:     len(specs),
			Message:   "All models failed",
		})
		log.Warn("All models failed")
		return nil, &contracts.AllModelsFailedError{Symbol: req.Symbol, Failures: run.Failures}
	}

	// 4. Selection + report
	emit(ctx, progress, contracts.ProgressEvent{
		Stage:     contracts.StageSelection,
		Symbol:    req.Symbol,
		Completed: len(specs),
		Total:     len(specs),
		Message:   fmt.Sprintf("Selecting best model by %s", metric),
	})

	best, _, err := GetBestModel(run, metric)
	if err != nil {
		// 요청 지표가 어떤 모델에도 없으면 (예: roc_auc) F1 로 대체
		log.WithFields(map[string]interface{}{"metric": metric}).Warn("Metric unavailable for every model, falling back to f1")
		run.BestMetric = DefaultMetric
		best, _, err = GetBestModel(run, DefaultMetric)
		if err != nil {
			return nil, err
		}
	}
	run.BestModel = best
	run.Duration = time.Since(startedAt)
	run.Report = Report(run, o.opts.Backtest)

	o.metrics.ObserveComparison("success")
	emit(ctx, progress, contracts.ProgressEvent{
		Stage:     contracts.StageCompleted,
		Symbol:    req.Symbol,
		Completed: len(specs),
		Total:     len(specs),
		Message:   fmt.Sprintf("Best model: %s", best),
	})

	log.WithFields(map[string]interface{}{
		"run_id":      run.RunID,
		"best_model":  best,
		"succeeded":   len(run.Models),
		"failed":      len(run.Failures),
		"duration_ms": run.Duration.Milliseconds(),
	}).Info("Comparison completed")

	kept := make(map[string]*models.TrainedModel, len(run.Models))
	for _, name := range run.Models {
		kept[name] = trained[name]
	}
	return &Result{Run: run, Models: kept}, nil
}

func (o *Orchestrator) prepare(req Request) (contracts.Metric, []models.Spec, *dataset.Builder, error) {
	if req.Symbol == "" {
		return "", nil, nil, fmt.Errorf("%w: symbol is required", contracts.ErrInvalidInput)
	}
	if !req.End.IsZero() && req.End.Before(req.Start) {
		return "", nil, nil, fmt.Errorf("%w: end %s before start %s", contracts.ErrInvalidInput,
			req.End.Format(features.DateLayout), req.Start.Format(features.DateLayout))
	}

	metric := req.BestMetric
	if metric == "" {
		metric = DefaultMetric
	}
	if _, err := contracts.ParseMetric(string(metric)); err != nil {
		return "", nil, nil, err
	}

	specs := req.Specs
	if len(specs) == 0 {
		specs = o.factory.Specs()
	}
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return "", nil, nil, err
		}
		if seen[s.Name] {
			return "", nil, nil, fmt.Errorf("%w: duplicate model name %q", contracts.ErrInvalidInput, s.Name)
		}
		seen[s.Name] = true
	}

	builder := o.builder
	if req.Dataset != nil {
		if err := req.Dataset.Validate(); err != nil {
			return "", nil, nil, err
		}
		builder = dataset.NewBuilder(*req.Dataset, o.logger)
	}
	return metric, specs, builder, nil
}

type modelResult struct {
	index   int
	outcome contracts.ModelOutcome
	model   *models.TrainedModel
}

// runModels trains specs concurrently; outcomes come back in spec order
func (o *Orchestrator) runModels(ctx context.Context, symbol string, ds *dataset.Dataset, specs []models.Spec, progress chan<- contracts.ProgressEvent) ([]contracts.ModelOutcome, map[string]*models.TrainedModel) {
	results := make(chan modelResult, len(specs))

	var g errgroup.Group
	g.SetLimit(o.opts.Parallelism)

	go func() {
		for i, spec := range specs {
			i, spec := i, spec
			g.Go(func() error {
				model, outcome := o.evaluateModel(ctx, ds, spec)
				results <- modelResult{index: i, outcome: outcome, model: model}
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	outcomes := make([]contracts.ModelOutcome, len(specs))
	trained := make(map[string]*models.TrainedModel, len(specs))
	completed := 0
	for r := range results {
		completed++
		outcomes[r.index] = r.outcome

		ev := contracts.ProgressEvent{
			Symbol:    symbol,
			Model:     r.outcome.Model,
			Completed: completed,
			Total:     len(specs),
		}
		if r.outcome.Err != nil {
			ev.Stage = contracts.StageModelFailed
			ev.Message = fmt.Sprintf("Model %d of %d failed: %v", completed, len(specs), r.outcome.Err)
			o.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"model":  r.outcome.Model,
				"family": r.outcome.Family,
				"kind":   contracts.KindOf(r.outcome.Err),
			}).WithError(r.outcome.Err).Warn("Model failed")
		} else {
			ev.Stage = contracts.StageModelDone
			ev.Message = fmt.Sprintf("Model %d of %d trained", completed, len(specs))
			trained[r.outcome.Model] = r.model
		}
		emit(ctx, progress, ev)
	}

	return outcomes, trained
}

// evaluateModel runs train → predict → backtest → metrics for one spec under the model budget
func (o *Orchestrator) evaluateModel(ctx context.Context, ds *dataset.Dataset, spec models.Spec) (*models.TrainedModel, contracts.ModelOutcome) {
	family := spec.Config.Family()
	outcome := contracts.ModelOutcome{Model: spec.Name, Family: family}

	mctx, cancel := context.WithTimeout(ctx, o.opts.ModelTimeout)
	defer cancel()

	type unit struct {
		model   *models.TrainedModel
		metrics *contracts.ModelMetrics
		err     error
	}
	done := make(chan unit, 1)

	go func() {
		// 추정기 panic 은 해당 모델의 학습 실패로 격리
		defer func() {
			if r := recover(); r != nil {
				done <- unit{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		model, mm, err := o.train(mctx, ds, spec)
		done <- unit{model: model, metrics: mm, err: err}
	}()

	var u unit
	select {
	case u = <-done:
	case <-mctx.Done():
		// 학습 goroutine 은 ctx 확인 시점에 종료됨
		u.err = mctx.Err()
	}

	if u.err == nil && mctx.Err() != nil {
		u.err = mctx.Err()
	}
	if u.err != nil {
		if errors.Is(u.err, context.DeadlineExceeded) && ctx.Err() == nil {
			u.err = fmt.Errorf("%w: exceeded %s: %v", contracts.ErrTimeout, o.opts.ModelTimeout, u.err)
		}
		outcome.Err = contracts.NewModelError(spec.Name, u.err)
		o.metrics.ObserveModel(string(family), string(contracts.KindOf(outcome.Err)), 0)
		return nil, outcome
	}

	outcome.Metrics = u.metrics
	o.metrics.ObserveModel(string(family), "success", u.metrics.TrainingTime)
	return u.model, outcome
}

func (o *Orchestrator) trainAndEvaluate(ctx context.Context, ds *dataset.Dataset, spec models.Spec) (*models.TrainedModel, *contracts.ModelMetrics, error) {
	train := ds.Train()

	trainStart := time.Now()
	model, err := o.factory.Train(ctx, spec, train.X, train.Y)
	if err != nil {
		return nil, nil, err
	}
	trainingTime := time.Since(trainStart)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	test := ds.Test()

	predictStart := time.Now()
	preds, err := model.Predict(test.X)
	if err != nil {
		return nil, nil, fmt.Errorf("predict: %w", err)
	}
	proba, err := model.PredictProbability(test.X)
	if err != nil {
		return nil, nil, fmt.Errorf("predict probability: %w", err)
	}
	predictionTime := time.Since(predictStart)

	confidences := make([]float64, len(proba))
	for i, p := range proba {
		if len(p) >= 2 {
			confidences[i] = p[1]
		}
	}

	bt, err := o.simulator.Run(preds, confidences, test.Prices)
	if err != nil {
		return nil, nil, fmt.Errorf("backtest: %w", err)
	}

	mm, err := evaluation.Evaluate(test.Y, preds, proba, bt)
	if err != nil {
		return nil, nil, fmt.Errorf("evaluate: %w", err)
	}
	mm.Model = spec.Name
	mm.Family = spec.Config.Family()
	mm.Params = model.Params()
	mm.TrainRows = len(train.Y)
	mm.TestRows = len(test.Y)
	mm.TrainingTime = trainingTime
	mm.PredictionTime = predictionTime

	return model, &mm, nil
}

// emit sends ev unless ctx is done; a nil channel drops events
func emit(ctx context.Context, progress chan<- contracts.ProgressEvent, ev contracts.ProgressEvent) {
	if progress == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case progress <- ev:
	case <-ctx.Done():
	}
}
