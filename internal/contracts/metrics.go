package contracts

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ModelFamily identifies a model implementation
type ModelFamily string

const (
	FamilyGradientBoosting   ModelFamily = "gradient_boosting"
	FamilyRandomForest       ModelFamily = "random_forest"
	FamilyNeuralNetwork      ModelFamily = "neural_network"
	FamilyLinearSVM          ModelFamily = "linear_svm"
	FamilyLogisticRegression ModelFamily = "logistic_regression"
)

// ProfitFactorState distinguishes finite, infinite and undefined profit factors
type ProfitFactorState int

const (
	ProfitFactorFinite ProfitFactorState = iota
	ProfitFactorInfinite
	ProfitFactorUndefined
)

// ProfitFactor is gross profit / gross loss with explicit sentinels
// 손실 0 & 이익 > 0 → +∞, 둘 다 0 → undefined
type ProfitFactor struct {
	Value float64
	State ProfitFactorState
}

// Float returns +Inf for infinite and NaN for undefined
func (p ProfitFactor) Float() float64 {
	switch p.State {
	case ProfitFactorInfinite:
		return math.Inf(1)
	case ProfitFactorUndefined:
		return math.NaN()
	default:
		return p.Value
	}
}

func (p ProfitFactor) String() string {
	switch p.State {
	case ProfitFactorInfinite:
		return "inf"
	case ProfitFactorUndefined:
		return "undefined"
	default:
		return fmt.Sprintf("%.2f", p.Value)
	}
}

// MarshalJSON encodes sentinels as strings since JSON has no Inf/NaN
func (p ProfitFactor) MarshalJSON() ([]byte, error) {
	if p.State == ProfitFactorFinite {
		return json.Marshal(p.Value)
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts a number, "inf" or "undefined"
func (p *ProfitFactor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "inf":
			*p = ProfitFactor{State: ProfitFactorInfinite}
		case "undefined":
			*p = ProfitFactor{State: ProfitFactorUndefined}
		default:
			return fmt.Errorf("invalid profit factor %q", s)
		}
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid profit factor: %w", err)
	}
	*p = ProfitFactor{Value: v}
	return nil
}

// ModelMetrics aggregates classification and trading metrics of one model on one dataset
type ModelMetrics struct {
	Model  string                 `json:"model"`
	Family ModelFamily            `json:"family"`
	Params map[string]interface{} `json:"params"`

	// 분류 지표 (weighted)
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	ROCAUC    float64 `json:"roc_auc"`
	HasROCAUC bool    `json:"has_roc_auc"`

	// 트레이딩 지표
	TotalReturn   float64      `json:"total_return"`
	SharpeRatio   float64      `json:"sharpe_ratio"`
	SortinoRatio  float64      `json:"sortino_ratio"`
	MaxDrawdown   float64      `json:"max_drawdown"`
	Volatility    float64      `json:"volatility"`
	WinRate       float64      `json:"win_rate"`
	ProfitFactor  ProfitFactor `json:"profit_factor"`
	AvgWin        float64      `json:"avg_win"`
	AvgLoss       float64      `json:"avg_loss"`
	ClosedTrades  int          `json:"closed_trades"`
	WinningTrades int          `json:"winning_trades"`
	LosingTrades  int          `json:"losing_trades"`
	OpenPosition  bool         `json:"open_position"`
	Exposure      float64      `json:"exposure"`
	FinalEquity   float64      `json:"final_equity"`

	TrainRows      int           `json:"train_rows"`
	TestRows       int           `json:"test_rows"`
	TrainingTime   time.Duration `json:"training_time"`
	PredictionTime time.Duration `json:"prediction_time"`
}

// Metric names a selectable metric
type Metric string

const (
	MetricAccuracy     Metric = "accuracy"
	MetricPrecision    Metric = "precision"
	MetricRecall       Metric = "recall"
	MetricF1           Metric = "f1"
	MetricROCAUC       Metric = "roc_auc"
	MetricSharpe       Metric = "sharpe_ratio"
	MetricSortino      Metric = "sortino_ratio"
	MetricTotalReturn  Metric = "total_return"
	MetricMaxDrawdown  Metric = "max_drawdown"
	MetricWinRate      Metric = "win_rate"
	MetricProfitFactor Metric = "profit_factor"
)

// AllMetrics lists every metric in report order
var AllMetrics = []Metric{
	MetricAccuracy, MetricPrecision, MetricRecall, MetricF1, MetricROCAUC,
	MetricSharpe, MetricSortino, MetricTotalReturn, MetricMaxDrawdown, MetricWinRate, MetricProfitFactor,
}

// ParseMetric validates a metric name
func ParseMetric(s string) (Metric, error) {
	for _, m := range AllMetrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown metric %q", ErrInvalidInput, s)
}

// LowerIsBetter reports whether smaller values of the metric are better
func (m Metric) LowerIsBetter() bool {
	return m == MetricMaxDrawdown
}

// Value returns the metric value; false when the metric is not available
func (mm ModelMetrics) Value(m Metric) (float64, bool) {
	switch m {
	case MetricAccuracy:
		return mm.Accuracy, true
	case MetricPrecision:
		return mm.Precision, true
	case MetricRecall:
		return mm.Recall, true
	case MetricF1:
		return mm.F1, true
	case MetricROCAUC:
		return mm.ROCAUC, mm.HasROCAUC
	case MetricSharpe:
		return mm.SharpeRatio, true
	case MetricSortino:
		return mm.SortinoRatio, true
	case MetricTotalReturn:
		return mm.TotalReturn, true
	case MetricMaxDrawdown:
		return mm.MaxDrawdown, true
	case MetricWinRate:
		return mm.WinRate, true
	case MetricProfitFactor:
		if mm.ProfitFactor.State == ProfitFactorUndefined {
			return 0, false
		}
		return mm.ProfitFactor.Float(), true
	default:
		return 0, false
	}
}
