package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/modelcmp/internal/aggregation"
	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/internal/features"
	"github.com/wonny/modelcmp/pkg/logger"
)

type stubBatcher struct {
	got aggregation.BatchRequest
	agg *contracts.AggregateComparison
	err error
}

func (b *stubBatcher) CompareMultiple(ctx context.Context, req aggregation.BatchRequest, progress chan<- contracts.ProgressEvent) (*contracts.AggregateComparison, error) {
	b.got = req
	return b.agg, b.err
}

type stubStore struct {
	saved []*contracts.AggregateComparison
}

func (s *stubStore) SaveAggregate(ctx context.Context, agg *contracts.AggregateComparison) error {
	s.saved = append(s.saved, agg)
	return nil
}

type failingProvider struct {
	fail map[string]bool
}

func (p *failingProvider) GetFeatureRows(ctx context.Context, symbol string, start, end time.Time) (*contracts.FeatureTable, error) {
	if p.fail[symbol] {
		return nil, errors.New("upstream down")
	}
	return features.NewSynthetic(features.DefaultSyntheticConfig()).GetFeatureRows(ctx, symbol, start, end)
}

var now = time.Date(2024, 6, 3, 19, 0, 0, 0, time.UTC)

func TestBatchCompareJob(t *testing.T) {
	batcher := &stubBatcher{agg: &contracts.AggregateComparison{
		RunID:            "agg",
		SymbolsAttempted: 3,
		SymbolsSucceeded: 2,
		FailedSymbols:    []contracts.SymbolFailure{{Symbol: "035720"}},
	}}
	store := &stubStore{}
	job := NewBatchCompareJob(batcher, store, aggregation.BatchRequest{
		Symbols:    []string{"005930", "000660", "035720"},
		BestMetric: contracts.MetricSharpe,
	}, "0 0 19 * * 1-5", 365, logger.Nop())
	job.now = func() time.Time { return now }

	report, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "agg", report.RunID)
	assert.Equal(t, 3, report.Symbols)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, []string{"035720"}, report.FailedSymbols)

	assert.Equal(t, "batch_compare", job.Name())
	assert.Equal(t, "0 0 19 * * 1-5", job.Schedule())
	assert.Equal(t, now, batcher.got.End)
	assert.Equal(t, now.AddDate(0, 0, -365), batcher.got.Start)
	assert.Equal(t, contracts.MetricSharpe, batcher.got.BestMetric)
	require.Len(t, store.saved, 1)
}

func TestBatchCompareJobPartialCancelIsSaved(t *testing.T) {
	batcher := &stubBatcher{agg: &contracts.AggregateComparison{RunID: "agg", Cancelled: true}, err: context.Canceled}
	store := &stubStore{}
	job := NewBatchCompareJob(batcher, store, aggregation.BatchRequest{Symbols: []string{"A"}}, "@daily", 30, logger.Nop())

	report, err := job.Run(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, store.saved, 1)
	assert.True(t, report.Cancelled)
	assert.Equal(t, "agg", report.RunID)
}

func TestBatchCompareJobEmptyWatchlist(t *testing.T) {
	job := NewBatchCompareJob(&stubBatcher{}, nil, aggregation.BatchRequest{}, "@daily", 30, logger.Nop())
	_, err := job.Run(context.Background())
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)
}

func TestFeatureWarmupJob(t *testing.T) {
	job := NewFeatureWarmupJob(&failingProvider{fail: map[string]bool{"B": true}}, []string{"A", "B"}, "0 30 18 * * 1-5", 90, logger.Nop())
	job.now = func() time.Time { return now }
	report, err := job.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, report.Symbols)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, []string{"B"}, report.FailedSymbols)

	all := NewFeatureWarmupJob(&failingProvider{fail: map[string]bool{"A": true}}, []string{"A"}, "@daily", 90, logger.Nop())
	_, err = all.Run(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err = job.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Cancelled)
}
