package interpretation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/pkg/logger"
)

func goodMetrics() contracts.ModelMetrics {
	return contracts.ModelMetrics{
		Model:       "gradient_boosting",
		Accuracy:    0.9,
		F1:          0.85,
		SharpeRatio: 1.5,
		TotalReturn: 0.12,
		MaxDrawdown: 0.08,
		WinRate:     0.65,
	}
}

func TestAnalyzeStrongModel(t *testing.T) {
	e := NewEngine(logger.Nop())

	a := e.Analyze(goodMetrics())

	assert.Contains(t, []contracts.Grade{contracts.GradeVeryGood, contracts.GradeExcellent}, a.OverallGrade)
	assert.Equal(t, contracts.RiskLow, a.OverallRisk)
	assert.True(t, a.IsTradable)
	assert.NotEmpty(t, a.Strengths)
	assert.Empty(t, a.Weaknesses)
	assert.Greater(t, a.ConfidenceScore, 0.7)
	assert.LessOrEqual(t, a.ConfidenceScore, 1.0)
}

func TestAnalyzeStrongModelWithTrades(t *testing.T) {
	e := NewEngine(logger.Nop())
	mm := goodMetrics()
	mm.ClosedTrades = 20
	mm.WinningTrades = 13
	mm.ProfitFactor = contracts.ProfitFactor{Value: 1.8}

	a := e.Analyze(mm)

	assert.Contains(t, []contracts.Grade{contracts.GradeVeryGood, contracts.GradeExcellent}, a.OverallGrade)
	assert.Equal(t, contracts.RiskLow, a.OverallRisk)
	assert.True(t, a.IsTradable)
	_, ok := a.Interpretation(contracts.MetricWinRate)
	assert.True(t, ok)
	assert.NotContains(t, a.Warnings, "Profit factor is infinite (no losing trades)")
}

func TestNegativeSharpeIsNeverTradable(t *testing.T) {
	e := NewEngine(logger.Nop())
	mm := contracts.ModelMetrics{
		Accuracy:     0.99,
		F1:           0.99,
		ROCAUC:       0.99,
		HasROCAUC:    true,
		SharpeRatio:  -0.5,
		TotalReturn:  0.5,
		MaxDrawdown:  0.01,
		WinRate:      0.9,
		ClosedTrades: 50,
		ProfitFactor: contracts.ProfitFactor{Value: 5},
	}

	a := e.Analyze(mm)

	sharpe, ok := a.Interpretation(contracts.MetricSharpe)
	require.True(t, ok)
	assert.Equal(t, contracts.GradeFailing, sharpe.Grade)
	assert.Equal(t, contracts.RiskCritical, sharpe.Risk)
	assert.Equal(t, contracts.RiskCritical, a.OverallRisk)
	assert.False(t, a.IsTradable)
	assert.Contains(t, a.Recommendations, "Model is not tradable; do not deploy")
}

func TestGradeBoundaries(t *testing.T) {
	e := NewEngine(logger.Nop())

	cases := []struct {
		metric contracts.Metric
		value  float64
		grade  contracts.Grade
	}{
		{contracts.MetricSharpe, 2.0, contracts.GradeExcellent},
		{contracts.MetricSharpe, 1.0, contracts.GradeVeryGood},
		{contracts.MetricSharpe, 0.5, contracts.GradeGood},
		{contracts.MetricSharpe, 0.3, contracts.GradeAverage},
		{contracts.MetricSharpe, 0.0, contracts.GradePoor},
		{contracts.MetricSharpe, -0.01, contracts.GradeFailing},
		{contracts.MetricTotalReturn, 0.0, contracts.GradePoor},
		{contracts.MetricTotalReturn, -0.001, contracts.GradeFailing},
		{contracts.MetricMaxDrawdown, 0.05, contracts.GradeExcellent},
		{contracts.MetricMaxDrawdown, 0.25, contracts.GradePoor},
		{contracts.MetricMaxDrawdown, 0.2501, contracts.GradeFailing},
		{contracts.MetricWinRate, 0.4, contracts.GradePoor},
		{contracts.MetricWinRate, 0.39, contracts.GradeFailing},
		{contracts.MetricAccuracy, 0.8, contracts.GradeExcellent},
		{contracts.MetricAccuracy, 0.49, contracts.GradeFailing},
		{contracts.MetricProfitFactor, math.Inf(1), contracts.GradeExcellent},
		{contracts.MetricProfitFactor, 0.5, contracts.GradeFailing},
		{contracts.MetricSharpe, math.NaN(), contracts.GradeFailing},
	}

	for _, tc := range cases {
		mi, ok := e.InterpretMetric(tc.metric, tc.value)
		require.True(t, ok)
		assert.Equal(t, tc.grade, mi.Grade, "%s=%v", tc.metric, tc.value)
		assert.Equal(t, RiskFor(tc.grade), mi.Risk)
		assert.NotEmpty(t, mi.Interpretation)
		assert.NotEmpty(t, mi.Recommendation)
	}

	_, ok := e.InterpretMetric(contracts.MetricPrecision, 0.5)
	assert.False(t, ok)
}

func TestGradeMonotonicity(t *testing.T) {
	e := NewEngine(logger.Nop())

	for metric := range DefaultTables() {
		table, _ := e.Table(metric)
		prev := contracts.Grade(-1)
		for i := 0; i <= 400; i++ {
			v := -1.0 + float64(i)*0.01
			if table.LowerIsBetter {
				v = 3.0 - float64(i)*0.01 // 개선 방향으로 이동
			}
			g := table.Grade(v)
			assert.GreaterOrEqual(t, g, prev, "%s at %v", metric, v)
			prev = g
		}
	}
}

func TestOverallGradeIsRoundedMean(t *testing.T) {
	e := NewEngine(logger.Nop())
	mm := contracts.ModelMetrics{
		Accuracy:    0.9,  // EXCELLENT 5
		F1:          0.52, // POOR 1
		SharpeRatio: 0.6,  // GOOD 3
		TotalReturn: 0.03, // AVERAGE 2
		MaxDrawdown: 0.12, // GOOD 3
	}

	a := e.Analyze(mm)

	// (5+1+3+2+3)/5 = 2.8 → 3
	assert.Equal(t, contracts.GradeGood, a.OverallGrade)
	assert.Equal(t, contracts.RiskVeryHigh, a.OverallRisk)
	assert.True(t, a.IsTradable)
	assert.Len(t, a.Weaknesses, 1)
}

func TestConfidenceNormalizedOverPresent(t *testing.T) {
	e := NewEngine(logger.Nop())
	mm := contracts.ModelMetrics{
		Accuracy:    0.9,
		F1:          0.9,
		SharpeRatio: 3,
		TotalReturn: 0.5,
		MaxDrawdown: 0.01,
	}

	a := e.Analyze(mm)
	// win rate 미포함이어도 모두 EXCELLENT → 1.0
	assert.InDelta(t, 1.0, a.ConfidenceScore, 1e-12)
	assert.InDelta(t, 100.0, a.Score, 1e-9)
}

func TestWarnings(t *testing.T) {
	e := NewEngine(logger.Nop())
	mm := goodMetrics()
	mm.ClosedTrades = 2
	mm.WinningTrades = 2
	mm.ProfitFactor = contracts.ProfitFactor{State: contracts.ProfitFactorInfinite}
	mm.OpenPosition = true

	a := e.Analyze(mm)

	assert.Len(t, a.Warnings, 3)
	pf, ok := a.Interpretation(contracts.MetricProfitFactor)
	require.True(t, ok)
	assert.Equal(t, contracts.GradeExcellent, pf.Grade)
}

func TestUndefinedProfitFactorNotGraded(t *testing.T) {
	e := NewEngine(logger.Nop())
	mm := goodMetrics()
	mm.ClosedTrades = 3
	mm.ProfitFactor = contracts.ProfitFactor{State: contracts.ProfitFactorUndefined}

	a := e.Analyze(mm)

	_, ok := a.Interpretation(contracts.MetricProfitFactor)
	assert.False(t, ok)
	assert.Contains(t, a.Warnings, "Profit factor is undefined (all closed trades broke even)")
}

func TestNonTradableScoreIsHalved(t *testing.T) {
	e := NewEngine(logger.Nop())
	good := e.Analyze(goodMetrics())

	bad := goodMetrics()
	bad.TotalReturn = -0.01
	worse := e.Analyze(bad)

	assert.False(t, worse.IsTradable)
	assert.Less(t, worse.Score, good.Score/2+1e-9)
}
