package interpretation

import (
	"fmt"
	"math"

	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/pkg/logger"
)

// MinClosedTrades below which trading metrics carry a warning
const MinClosedTrades = 10

// Engine turns raw metrics into grades, risk levels and a tradability verdict
// ⭐ SSOT: 지표 해석/등급/거래 가능 판정은 여기서만
type Engine struct {
	tables  map[contracts.Metric]Table
	weights map[contracts.Metric]float64
	logger  *logger.Logger
}

// NewEngine creates an engine with the default tables and weights
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{
		tables:  DefaultTables(),
		weights: DefaultWeights,
		logger:  log.Component("interpretation"),
	}
}

// Table returns the threshold table of a metric
func (e *Engine) Table(m contracts.Metric) (Table, bool) {
	t, ok := e.tables[m]
	return t, ok
}

// InterpretMetric grades one value; false when the metric has no table
func (e *Engine) InterpretMetric(m contracts.Metric, v float64) (contracts.MetricInterpretation, bool) {
	table, ok := e.tables[m]
	if !ok {
		return contracts.MetricInterpretation{}, false
	}

	grade := table.Grade(v)
	interp, rec := describe(m, grade, v)
	return contracts.MetricInterpretation{
		Metric:         m,
		Value:          v,
		Grade:          grade,
		Risk:           RiskFor(grade),
		Interpretation: interp,
		Recommendation: rec,
	}, true
}

// =============================================================================
// Model Analysis
// =============================================================================

// Analyze aggregates metric interpretations into a ModelAnalysis.
//
//	overall_grade = round(mean grade), overall_risk = worst risk
//	is_tradable   = false if overall risk CRITICAL, overall grade FAILING,
//	                or Sharpe / total return risk CRITICAL
func (e *Engine) Analyze(mm contracts.ModelMetrics) contracts.ModelAnalysis {
	analysis := contracts.ModelAnalysis{
		Model:           mm.Model,
		Strengths:       []string{},
		Weaknesses:      []string{},
		Recommendations: []string{},
		Warnings:        []string{},
	}

	for _, m := range e.gradedMetrics(mm) {
		v, _ := mm.Value(m)
		if mi, ok := e.InterpretMetric(m, v); ok {
			analysis.Metrics = append(analysis.Metrics, mi)
		}
	}

	gradeSum := 0
	for _, mi := range analysis.Metrics {
		gradeSum += int(mi.Grade)
		if mi.Risk > analysis.OverallRisk {
			analysis.OverallRisk = mi.Risk
		}

		label := fmt.Sprintf("%s %s (%s)", DisplayName(mi.Metric), FormatValue(mi.Metric, mi.Value), mi.Grade)
		switch {
		case mi.Grade >= contracts.GradeVeryGood:
			analysis.Strengths = append(analysis.Strengths, label)
		case mi.Grade <= contracts.GradePoor:
			analysis.Weaknesses = append(analysis.Weaknesses, label)
		}
		if mi.Grade <= contracts.GradeAverage {
			analysis.Recommendations = appendUnique(analysis.Recommendations, mi.Recommendation)
		}
	}
	if len(analysis.Metrics) > 0 {
		avg := float64(gradeSum) / float64(len(analysis.Metrics))
		analysis.OverallGrade = contracts.Grade(math.Round(avg))
	}

	analysis.IsTradable = e.tradable(analysis)
	analysis.ConfidenceScore = e.confidence(analysis)
	analysis.Score = e.score(analysis)
	analysis.Warnings = e.warnings(mm)

	if analysis.IsTradable {
		analysis.Recommendations = append(analysis.Recommendations, "Model is tradable; start with reduced size and track live metrics")
	} else {
		analysis.Recommendations = append(analysis.Recommendations, "Model is not tradable; do not deploy")
	}

	e.logger.WithFields(map[string]interface{}{
		"model":    mm.Model,
		"grade":    analysis.OverallGrade.String(),
		"risk":     analysis.OverallRisk.String(),
		"tradable": analysis.IsTradable,
		"score":    analysis.Score,
	}).Debug("Model analyzed")

	return analysis
}

// gradedMetrics lists the metrics that are graded for mm
// win rate / profit factor 는 청산 거래가 있을 때만, roc_auc 는 계산된 경우만
func (e *Engine) gradedMetrics(mm contracts.ModelMetrics) []contracts.Metric {
	out := []contracts.Metric{
		contracts.MetricAccuracy,
		contracts.MetricF1,
	}
	if mm.HasROCAUC {
		out = append(out, contracts.MetricROCAUC)
	}
	out = append(out,
		contracts.MetricSharpe,
		contracts.MetricTotalReturn,
		contracts.MetricMaxDrawdown,
	)
	if mm.ClosedTrades > 0 {
		out = append(out, contracts.MetricWinRate)
		if mm.ProfitFactor.State != contracts.ProfitFactorUndefined {
			out = append(out, contracts.MetricProfitFactor)
		}
	}
	return out
}

func (e *Engine) tradable(a contracts.ModelAnalysis) bool {
	if a.OverallRisk == contracts.RiskCritical || a.OverallGrade == contracts.GradeFailing {
		return false
	}
	for _, critical := range []contracts.Metric{contracts.MetricSharpe, contracts.MetricTotalReturn} {
		if mi, ok := a.Interpretation(critical); ok && mi.Risk == contracts.RiskCritical {
			return false
		}
	}
	return true
}

// confidence is the weighted mean grade score over the weighted metrics present
func (e *Engine) confidence(a contracts.ModelAnalysis) float64 {
	var weighted, total float64
	for _, mi := range a.Metrics {
		w, ok := e.weights[mi.Metric]
		if !ok {
			continue
		}
		weighted += w * mi.Grade.Score()
		total += w
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// score is the composite ranking score in [0,100]
// 70% 가중 신뢰도 + 30% 전체 지표 평균 등급, 거래 불가 모델은 절반
func (e *Engine) score(a contracts.ModelAnalysis) float64 {
	if len(a.Metrics) == 0 {
		return 0
	}

	breadth := 0.0
	for _, mi := range a.Metrics {
		breadth += mi.Grade.Score()
	}
	breadth /= float64(len(a.Metrics))

	s := 100 * (0.7*a.ConfidenceScore + 0.3*breadth)
	if !a.IsTradable {
		s *= 0.5
	}
	return math.Round(s*100) / 100
}

func (e *Engine) warnings(mm contracts.ModelMetrics) []string {
	warnings := []string{}
	if mm.ClosedTrades < MinClosedTrades {
		warnings = append(warnings, fmt.Sprintf("Only %d closed trades; trading metrics are statistically weak", mm.ClosedTrades))
	}
	if mm.ProfitFactor.State == contracts.ProfitFactorInfinite {
		warnings = append(warnings, "Profit factor is infinite (no losing trades)")
	}
	if mm.ProfitFactor.State == contracts.ProfitFactorUndefined {
		warnings = append(warnings, "Profit factor is undefined (all closed trades broke even)")
	}
	if mm.OpenPosition {
		warnings = append(warnings, "Position still open at the end of the test window; return includes unrealized P&L")
	}
	return warnings
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
