package interpretation

import (
	"fmt"
	"math"

	"github.com/wonny/modelcmp/internal/contracts"
)

// DisplayName returns the report label of a metric
func DisplayName(m contracts.Metric) string {
	switch m {
	case contracts.MetricAccuracy:
		return "Accuracy"
	case contracts.MetricPrecision:
		return "Precision"
	case contracts.MetricRecall:
		return "Recall"
	case contracts.MetricF1:
		return "F1 score"
	case contracts.MetricROCAUC:
		return "ROC-AUC"
	case contracts.MetricSharpe:
		return "Sharpe ratio"
	case contracts.MetricSortino:
		return "Sortino ratio"
	case contracts.MetricTotalReturn:
		return "Total return"
	case contracts.MetricMaxDrawdown:
		return "Max drawdown"
	case contracts.MetricWinRate:
		return "Win rate"
	case contracts.MetricProfitFactor:
		return "Profit factor"
	default:
		return string(m)
	}
}

// FormatValue renders a metric value (percent for ratios of capital or counts)
func FormatValue(m contracts.Metric, v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	switch m {
	case contracts.MetricTotalReturn, contracts.MetricMaxDrawdown, contracts.MetricWinRate, contracts.MetricAccuracy:
		return fmt.Sprintf("%.2f%%", v*100)
	default:
		return fmt.Sprintf("%.3f", v)
	}
}

// describe returns interpretation and recommendation texts
func describe(m contracts.Metric, g contracts.Grade, v float64) (string, string) {
	value := FormatValue(m, v)

	switch m {
	case contracts.MetricSharpe:
		switch {
		case g >= contracts.GradeVeryGood:
			return fmt.Sprintf("Risk-adjusted return of %s is strong", value),
				"Keep the current position sizing"
		case g >= contracts.GradeGood:
			return fmt.Sprintf("Risk-adjusted return of %s is acceptable", value),
				"Monitor return stability before scaling up"
		case g >= contracts.GradePoor:
			return fmt.Sprintf("Risk-adjusted return of %s barely compensates for volatility", value),
				"Reduce position size or tighten the stop loss"
		default:
			return fmt.Sprintf("Negative risk-adjusted return (%s)", value),
				"Do not trade this model"
		}

	case contracts.MetricTotalReturn:
		switch {
		case g >= contracts.GradeVeryGood:
			return fmt.Sprintf("Test-period return of %s is high", value),
				"Check that the return is not driven by a few trades"
		case g >= contracts.GradeAverage:
			return fmt.Sprintf("Test-period return of %s is modest", value),
				"Compare against a buy-and-hold benchmark"
		case g == contracts.GradePoor:
			return fmt.Sprintf("Test-period return of %s is close to flat", value),
				"Improve signal quality before trading"
		default:
			return fmt.Sprintf("Test-period return of %s is a loss", value),
				"Do not trade this model"
		}

	case contracts.MetricMaxDrawdown:
		switch {
		case g >= contracts.GradeVeryGood:
			return fmt.Sprintf("Peak-to-trough loss of %s is well contained", value),
				"Drawdown is within normal limits"
		case g >= contracts.GradeAverage:
			return fmt.Sprintf("Peak-to-trough loss of %s is noticeable", value),
				"Use a tighter stop loss"
		default:
			return fmt.Sprintf("Peak-to-trough loss of %s is severe", value),
				"Cut position size and review exit rules"
		}

	case contracts.MetricWinRate:
		switch {
		case g >= contracts.GradeVeryGood:
			return fmt.Sprintf("%s of closed trades were profitable", value),
				"Signal direction is reliable"
		case g >= contracts.GradeAverage:
			return fmt.Sprintf("%s of closed trades were profitable", value),
				"Make sure average wins exceed average losses"
		default:
			return fmt.Sprintf("Only %s of closed trades were profitable", value),
				"Raise the entry threshold or add confirming features"
		}

	case contracts.MetricProfitFactor:
		switch {
		case math.IsInf(v, 1):
			return "No losing trades in the test window",
				"Validate on a longer window before trusting the result"
		case g >= contracts.GradeGood:
			return fmt.Sprintf("Gross profit is %s times gross loss", value),
				"Profitability per unit of loss is healthy"
		case g >= contracts.GradeAverage:
			return fmt.Sprintf("Gross profit is %s times gross loss", value),
				"Edge is thin after costs"
		default:
			return fmt.Sprintf("Gross profit is only %s times gross loss", value),
				"Losses outweigh gains"
		}

	default:
		// 분류 지표 (accuracy, f1, roc_auc)
		name := DisplayName(m)
		switch {
		case g >= contracts.GradeVeryGood:
			return fmt.Sprintf("%s of %s shows strong predictive power", name, value),
				"Check for overfitting on a later window"
		case g >= contracts.GradeAverage:
			return fmt.Sprintf("%s of %s is better than chance", name, value),
				"Add features or more training history"
		default:
			return fmt.Sprintf("%s of %s is near or below chance", name, value),
				"Retrain with different features or model family"
		}
	}
}
