package comparison

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/modelcmp/internal/backtest"
	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/internal/dataset"
	"github.com/wonny/modelcmp/internal/features"
	"github.com/wonny/modelcmp/internal/interpretation"
	"github.com/wonny/modelcmp/internal/models"
	"github.com/wonny/modelcmp/pkg/logger"
)

var (
	start = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
)

func fastSpecs() []models.Spec {
	gb := models.DefaultGradientBoostingConfig()
	gb.NEstimators = 20
	rf := models.DefaultRandomForestConfig()
	rf.NEstimators = 15
	rf.MaxDepth = 5
	nn := models.DefaultNeuralNetworkConfig()
	nn.HiddenUnits = 8
	nn.Epochs = 5
	lr := models.DefaultLogisticRegressionConfig()
	lr.Epochs = 50

	return []models.Spec{
		{Name: "gb", Config: gb},
		{Name: "rf", Config: rf},
		{Name: "nn", Config: nn},
		{Name: "svm", Config: models.DefaultLinearSVMConfig()},
		{Name: "lr", Config: lr},
	}
}

func smallParams() *dataset.Params {
	p := dataset.DefaultParams()
	p.Lookback = 10
	return &p
}

func newOrchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	factory, err := models.NewFactory(fastSpecs()...)
	require.NoError(t, err)

	log := logger.Nop()
	return NewOrchestrator(
		features.NewSynthetic(features.DefaultSyntheticConfig()),
		dataset.NewBuilder(dataset.DefaultParams(), log),
		factory,
		interpretation.NewEngine(log),
		opts,
		nil,
		log,
	)
}

func drain(ch chan contracts.ProgressEvent) []contracts.ProgressEvent {
	close(ch)
	var out []contracts.ProgressEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestCompareRunsEveryModel(t *testing.T) {
	o := newOrchestrator(t, DefaultOptions())
	progress := make(chan contracts.ProgressEvent, 64)

	res, err := o.CompareDetailed(context.Background(), Request{
		Symbol:  "005930",
		Start:   start,
		End:     end,
		Dataset: smallParams(),
	}, progress)
	require.NoError(t, err)
	run := res.Run

	assert.Equal(t, []string{"gb", "rf", "nn", "svm", "lr"}, run.Models)
	assert.Empty(t, run.Failures)
	assert.Len(t, run.Metrics, 5)
	assert.Len(t, run.Analyses, 5)
	assert.Contains(t, run.Models, run.BestModel)
	assert.Equal(t, contracts.MetricF1, run.BestMetric)
	assert.NotEmpty(t, run.RunID)

	best, bestMetrics, err := GetBestModel(run, contracts.MetricF1)
	require.NoError(t, err)
	assert.Equal(t, run.BestModel, best)
	for _, name := range run.Models {
		assert.LessOrEqual(t, run.Metrics[name].F1, bestMetrics.F1)
	}

	ds := run.Dataset
	assert.Equal(t, ds.Rows, ds.TrainRows+ds.TestRows)
	assert.True(t, ds.TestStart.After(ds.Start))
	for _, mm := range run.Metrics {
		assert.Equal(t, ds.TestRows, mm.TestRows)
		assert.GreaterOrEqual(t, mm.WinRate, 0.0)
		assert.LessOrEqual(t, mm.WinRate, 1.0)
		assert.NotEmpty(t, mm.Params)
	}

	trained, ok := res.BestTrained()
	require.True(t, ok)
	assert.Equal(t, run.BestModel, trained.Name())

	assert.Contains(t, run.Report, "005930")
	assert.Contains(t, run.Report, "Best model: "+run.BestModel)
	assert.Contains(t, run.Report, "10,000,000")

	events := drain(progress)
	require.Len(t, events, 2+5+2)
	assert.Equal(t, contracts.StageDataset, events[0].Stage)
	assert.Equal(t, contracts.StageTraining, events[1].Stage)
	for i := 0; i < 5; i++ {
		ev := events[2+i]
		assert.Equal(t, contracts.StageModelDone, ev.Stage)
		assert.Equal(t, i+1, ev.Completed)
		assert.Equal(t, 5, ev.Total)
	}
	assert.Equal(t, contracts.StageSelection, events[7].Stage)
	assert.Equal(t, contracts.StageCompleted, events[8].Stage)
	assert.Equal(t, 100.0, events[8].Percent())
}

func TestCompareDeterministic(t *testing.T) {
	o := newOrchestrator(t, DefaultOptions())
	req := Request{Symbol: "000660", Start: start, End: end, Dataset: smallParams()}

	a, err := o.Compare(context.Background(), req, nil)
	require.NoError(t, err)
	b, err := o.Compare(context.Background(), req, nil)
	require.NoError(t, err)

	strip := func(m map[string]contracts.ModelMetrics) map[string]contracts.ModelMetrics {
		out := make(map[string]contracts.ModelMetrics, len(m))
		for k, v := range m {
			v.TrainingTime, v.PredictionTime = 0, 0
			out[k] = v
		}
		return out
	}
	assert.Equal(t, strip(a.Metrics), strip(b.Metrics))
	assert.Equal(t, a.BestModel, b.BestModel)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestCompareInsufficientData(t *testing.T) {
	o := newOrchestrator(t, DefaultOptions())

	_, err := o.Compare(context.Background(), Request{
		Symbol: "035720",
		Start:  start,
		End:    start.AddDate(0, 2, 0),
	}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)
	var insufficient *contracts.InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "035720", insufficient.Symbol)
	assert.Equal(t, contracts.KindInsufficientData, contracts.KindOf(err))
}

func TestCompareModelTimeoutIsIsolated(t *testing.T) {
	opts := DefaultOptions()
	opts.ModelTimeout = 500 * time.Millisecond
	o := newOrchestrator(t, opts)

	heavy := models.DefaultGradientBoostingConfig()
	heavy.NEstimators = 2000
	heavy.MaxDepth = 16
	heavy.MinSamplesLeaf = 1
	lr := models.DefaultLogisticRegressionConfig()
	lr.Epochs = 20

	run, err := o.Compare(context.Background(), Request{
		Symbol: "005930",
		Start:  start,
		End:    end,
		Specs: []models.Spec{
			{Name: "heavy_gb", Config: heavy},
			{Name: "lr", Config: lr},
		},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"lr"}, run.Models)
	require.Len(t, run.Failures, 1)
	assert.Equal(t, "heavy_gb", run.Failures[0].Model)
	assert.Equal(t, contracts.KindTimeout, run.Failures[0].Kind)
	assert.Equal(t, contracts.FamilyGradientBoosting, run.Failures[0].Family)
	assert.Equal(t, "lr", run.BestModel)
	assert.Contains(t, run.Report, "Failed models")
}

func TestComparePanickingModelIsIsolated(t *testing.T) {
	o := newOrchestrator(t, DefaultOptions())
	o.train = func(ctx context.Context, ds *dataset.Dataset, spec models.Spec) (*models.TrainedModel, *contracts.ModelMetrics, error) {
		if spec.Name == "rf" {
			var weights []float64
			_ = weights[3] // index out of range
		}
		return o.trainAndEvaluate(ctx, ds, spec)
	}

	run, err := o.Compare(context.Background(), Request{
		Symbol:  "005930",
		Start:   start,
		End:     end,
		Specs:   fastSpecs()[:2],
		Dataset: smallParams(),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"gb"}, run.Models)
	require.Len(t, run.Failures, 1)
	assert.Equal(t, "rf", run.Failures[0].Model)
	assert.Equal(t, contracts.KindTrainingFailed, run.Failures[0].Kind)
	assert.Contains(t, run.Failures[0].Message, "panic")
}

func TestCompareAllModelsFailed(t *testing.T) {
	opts := DefaultOptions()
	opts.ModelTimeout = time.Nanosecond
	o := newOrchestrator(t, opts)
	progress := make(chan contracts.ProgressEvent, 64)

	_, err := o.Compare(context.Background(), Request{
		Symbol:  "005930",
		Start:   start,
		End:     end,
		Specs:   fastSpecs()[:2],
		Dataset: smallParams(),
	}, progress)

	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrAllModelsFailed)
	var all *contracts.AllModelsFailedError
	require.True(t, errors.As(err, &all))
	assert.Len(t, all.Failures, 2)

	events := drain(progress)
	last := events[len(events)-1]
	assert.Equal(t, contracts.StageCompleted, last.Stage)
	assert.Equal(t, contracts.StageModelFailed, events[len(events)-2].Stage)
}

func TestCompareInvalidRequests(t *testing.T) {
	o := newOrchestrator(t, DefaultOptions())
	ctx := context.Background()

	_, err := o.Compare(ctx, Request{Start: start, End: end}, nil)
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)

	_, err = o.Compare(ctx, Request{Symbol: "A", Start: start, End: end, BestMetric: "alpha"}, nil)
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)

	_, err = o.Compare(ctx, Request{Symbol: "A", Start: end, End: start}, nil)
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)

	dup := fastSpecs()[:1]
	dup = append(dup, dup[0])
	_, err = o.Compare(ctx, Request{Symbol: "A", Start: start, End: end, Specs: dup}, nil)
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)
}

func TestCompareCancelled(t *testing.T) {
	o := newOrchestrator(t, DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Compare(ctx, Request{Symbol: "A", Start: start, End: end, Dataset: smallParams()}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetBestModel(t *testing.T) {
	run := &contracts.ComparisonRun{
		Models: []string{"a", "b", "c"},
		Metrics: map[string]contracts.ModelMetrics{
			"a": {F1: 0.6, MaxDrawdown: 0.2, ROCAUC: 0.9, HasROCAUC: false},
			"b": {F1: 0.7, MaxDrawdown: 0.1, ROCAUC: 0.6, HasROCAUC: true},
			"c": {F1: 0.7, MaxDrawdown: 0.3},
		},
	}

	name, _, err := GetBestModel(run, contracts.MetricF1)
	require.NoError(t, err)
	assert.Equal(t, "b", name, "ties keep the earlier model")

	name, _, err = GetBestModel(run, contracts.MetricMaxDrawdown)
	require.NoError(t, err)
	assert.Equal(t, "b", name)

	name, _, err = GetBestModel(run, contracts.MetricROCAUC)
	require.NoError(t, err)
	assert.Equal(t, "b", name, "models without roc_auc are skipped")

	assert.Equal(t, []string{"b", "a", "c"}, Ranking(run, contracts.MetricMaxDrawdown))
	assert.Equal(t, []string{"b", "c", "a"}, Ranking(run, contracts.MetricF1))

	_, _, err = GetBestModel(&contracts.ComparisonRun{}, contracts.MetricF1)
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "10,000,000", money(10_000_000))
	assert.Equal(t, "999", money(999))
	assert.Equal(t, "1,000", money(999.6))
	assert.Equal(t, "-1,235", money(-1234.5))
}

func TestReportWithoutBacktestCapital(t *testing.T) {
	run := &contracts.ComparisonRun{
		Symbol:     "X",
		Models:     []string{"m"},
		Metrics:    map[string]contracts.ModelMetrics{"m": {F1: 0.5}},
		Analyses:   map[string]contracts.ModelAnalysis{"m": {}},
		BestModel:  "m",
		BestMetric: contracts.MetricF1,
	}
	out := Report(run, backtest.DefaultConfig())
	assert.Contains(t, out, "Best model: m")
	assert.NotContains(t, out, "Failed models")
}
