package interpretation

import (
	"math"

	"github.com/wonny/modelcmp/internal/contracts"
)

// Table grades one metric.
// Cuts are the lower bounds of EXCELLENT, VERY_GOOD, GOOD, AVERAGE and POOR;
// for LowerIsBetter metrics they are upper bounds. Anything past the last cut is FAILING.
type Table struct {
	Metric        contracts.Metric `json:"metric"`
	LowerIsBetter bool             `json:"lower_is_better"`
	Cuts          [5]float64       `json:"cuts"`
}

// Grade maps a value to a grade; NaN is FAILING
func (t Table) Grade(v float64) contracts.Grade {
	if math.IsNaN(v) {
		return contracts.GradeFailing
	}
	for i, cut := range t.Cuts {
		if (!t.LowerIsBetter && v >= cut) || (t.LowerIsBetter && v <= cut) {
			return contracts.GradeExcellent - contracts.Grade(i)
		}
	}
	return contracts.GradeFailing
}

// DefaultTables returns the threshold tables
// ⭐ SSOT: 등급 임계값은 여기서만 정의
//
//	metric         EXCELLENT VERY_GOOD GOOD  AVERAGE POOR   FAILING
//	sharpe_ratio   ≥2.0      ≥1.0      ≥0.5  ≥0.25   ≥0.0   <0.0
//	total_return   ≥20%      ≥10%      ≥5%   ≥2.5%   ≥0%    <0%
//	max_drawdown   ≤5%       ≤10%      ≤15%  ≤20%    ≤25%   >25%
//	win_rate       ≥70%      ≥60%      ≥50%  ≥45%    ≥40%   <40%
//	accuracy       ≥80%      ≥70%      ≥60%  ≥55%    ≥50%   <50%
//	f1, roc_auc    ≥0.80     ≥0.70     ≥0.60 ≥0.55   ≥0.50  <0.50
//	profit_factor  ≥2.0      ≥1.5      ≥1.2  ≥1.0    ≥0.8   <0.8
func DefaultTables() map[contracts.Metric]Table {
	tables := []Table{
		{Metric: contracts.MetricSharpe, Cuts: [5]float64{2.0, 1.0, 0.5, 0.25, 0.0}},
		{Metric: contracts.MetricTotalReturn, Cuts: [5]float64{0.20, 0.10, 0.05, 0.025, 0.0}},
		{Metric: contracts.MetricMaxDrawdown, LowerIsBetter: true, Cuts: [5]float64{0.05, 0.10, 0.15, 0.20, 0.25}},
		{Metric: contracts.MetricWinRate, Cuts: [5]float64{0.70, 0.60, 0.50, 0.45, 0.40}},
		{Metric: contracts.MetricAccuracy, Cuts: [5]float64{0.80, 0.70, 0.60, 0.55, 0.50}},
		{Metric: contracts.MetricF1, Cuts: [5]float64{0.80, 0.70, 0.60, 0.55, 0.50}},
		{Metric: contracts.MetricROCAUC, Cuts: [5]float64{0.80, 0.70, 0.60, 0.55, 0.50}},
		{Metric: contracts.MetricProfitFactor, Cuts: [5]float64{2.0, 1.5, 1.2, 1.0, 0.8}},
	}

	out := make(map[contracts.Metric]Table, len(tables))
	for _, t := range tables {
		out[t.Metric] = t
	}
	return out
}

// RiskFor maps a grade to its risk level
func RiskFor(g contracts.Grade) contracts.RiskLevel {
	switch g {
	case contracts.GradeExcellent:
		return contracts.RiskVeryLow
	case contracts.GradeVeryGood:
		return contracts.RiskLow
	case contracts.GradeGood:
		return contracts.RiskModerate
	case contracts.GradeAverage:
		return contracts.RiskHigh
	case contracts.GradePoor:
		return contracts.RiskVeryHigh
	default:
		return contracts.RiskCritical
	}
}

// DefaultWeights are the confidence-score weights
var DefaultWeights = map[contracts.Metric]float64{
	contracts.MetricSharpe:      0.25,
	contracts.MetricTotalReturn: 0.20,
	contracts.MetricMaxDrawdown: 0.15,
	contracts.MetricWinRate:     0.15,
	contracts.MetricAccuracy:    0.15,
	contracts.MetricF1:          0.10,
}
