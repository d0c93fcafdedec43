package contracts

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfitFactorJSON(t *testing.T) {
	tests := []struct {
		pf   ProfitFactor
		want string
	}{
		{ProfitFactor{Value: 1.5}, `1.5`},
		{ProfitFactor{State: ProfitFactorInfinite}, `"inf"`},
		{ProfitFactor{State: ProfitFactorUndefined}, `"undefined"`},
	}

	for _, tt := range tests {
		data, err := json.Marshal(tt.pf)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(data))

		var back ProfitFactor
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, tt.pf, back)
	}

	var bad ProfitFactor
	assert.Error(t, json.Unmarshal([]byte(`"huge"`), &bad))
}

func TestProfitFactorFloat(t *testing.T) {
	assert.True(t, math.IsInf(ProfitFactor{State: ProfitFactorInfinite}.Float(), 1))
	assert.True(t, math.IsNaN(ProfitFactor{State: ProfitFactorUndefined}.Float()))
	assert.Equal(t, 2.0, ProfitFactor{Value: 2}.Float())
}

func TestModelMetricsValue(t *testing.T) {
	m := ModelMetrics{F1: 0.7, MaxDrawdown: 0.1, ROCAUC: 0.8}

	v, ok := m.Value(MetricF1)
	assert.True(t, ok)
	assert.Equal(t, 0.7, v)

	_, ok = m.Value(MetricROCAUC)
	assert.False(t, ok, "roc auc hidden when not computed")

	m.ProfitFactor = ProfitFactor{State: ProfitFactorUndefined}
	_, ok = m.Value(MetricProfitFactor)
	assert.False(t, ok)

	assert.True(t, MetricMaxDrawdown.LowerIsBetter())
	assert.False(t, MetricSharpe.LowerIsBetter())
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("sharpe_ratio")
	require.NoError(t, err)
	assert.Equal(t, MetricSharpe, m)

	_, err = ParseMetric("alpha")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGradeAndRiskJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		G Grade     `json:"g"`
		R RiskLevel `json:"r"`
	}{GradeVeryGood, RiskCritical})
	require.NoError(t, err)
	assert.JSONEq(t, `{"g":"VERY_GOOD","r":"CRITICAL"}`, string(data))

	var g Grade
	require.NoError(t, json.Unmarshal([]byte(`"POOR"`), &g))
	assert.Equal(t, GradePoor, g)
	assert.InDelta(t, 0.2, g.Score(), 1e-12)
}

func TestProgressEventPercent(t *testing.T) {
	assert.Equal(t, 50.0, ProgressEvent{Completed: 2, Total: 4}.Percent())
	assert.Equal(t, 0.0, ProgressEvent{}.Percent())
	assert.Equal(t, 100.0, ProgressEvent{Completed: 5, Total: 4}.Percent())
}

func TestFeatureTableVector(t *testing.T) {
	table := &FeatureTable{
		Symbol:  "A",
		Columns: []string{"rsi", "macd"},
		Rows:    []FeatureRow{{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100, Values: []float64{55}}},
	}

	v := table.Vector(0, nil)
	require.Len(t, v, table.Width())
	assert.Equal(t, []float64{1, 2, 0.5, 1.5, 100, 55}, v[:6])
	assert.True(t, math.IsNaN(v[6]), "short value rows are padded with NaN")
}

func TestFeatureRowJSONMissingValues(t *testing.T) {
	row := FeatureRow{
		Date:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Open:   10, High: 11, Low: 9, Close: 10.5, Volume: math.NaN(),
		Values: []float64{0.3, math.NaN()},
	}

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"volume":null`)

	var back FeatureRow
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 10.5, back.Close)
	assert.True(t, math.IsNaN(back.Volume))
	assert.Equal(t, 0.3, back.Values[0])
	assert.True(t, math.IsNaN(back.Values[1]))
}

func TestModelOutcomeFailure(t *testing.T) {
	o := ModelOutcome{
		Model:  "rf",
		Family: FamilyRandomForest,
		Err:    NewModelError("rf", ErrTimeout),
	}

	f := o.Failure()
	assert.Equal(t, KindTimeout, f.Kind)
	assert.Equal(t, FamilyRandomForest, f.Family)
	assert.NotEmpty(t, f.Message)
}
