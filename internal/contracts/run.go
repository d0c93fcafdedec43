package contracts

import (
	"time"
)

// DatasetSummary describes the dataset a comparison ran on
type DatasetSummary struct {
	Rows         int       `json:"rows"`
	TrainRows    int       `json:"train_rows"`
	TestRows     int       `json:"test_rows"`
	Features     int       `json:"features"`
	Lookback     int       `json:"lookback"`
	Horizon      int       `json:"horizon"`
	Threshold    float64   `json:"threshold"`
	DroppedRows  int       `json:"dropped_rows"`
	PositiveRate float64   `json:"positive_rate"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	TestStart    time.Time `json:"test_start"`
}

// ModelFailure records why a model was excluded from a run
type ModelFailure struct {
	Model   string      `json:"model"`
	Family  ModelFamily `json:"family"`
	Kind    ErrorKind   `json:"kind"`
	Message string      `json:"message"`
}

// ModelOutcome is the per-model result folded into a run: metrics or an error, never both
type ModelOutcome struct {
	Model   string
	Family  ModelFamily
	Metrics *ModelMetrics
	Err     error
}

// Failure converts a failed outcome into a ModelFailure
func (o ModelOutcome) Failure() ModelFailure {
	return ModelFailure{
		Model:   o.Model,
		Family:  o.Family,
		Kind:    KindOf(o.Err),
		Message: o.Err.Error(),
	}
}

// ComparisonRun is the result of comparing models on one symbol
type ComparisonRun struct {
	RunID       string                   `json:"run_id"`
	Symbol      string                   `json:"symbol"`
	ProfileHash string                   `json:"profile_hash,omitempty"`
	StartedAt   time.Time                `json:"started_at"`
	Duration    time.Duration            `json:"duration"`
	Dataset     DatasetSummary           `json:"dataset"`
	Models      []string                 `json:"models"` // 성공한 모델, 요청 순서
	Metrics     map[string]ModelMetrics  `json:"metrics"`
	Analyses    map[string]ModelAnalysis `json:"analyses"`
	Failures    []ModelFailure           `json:"failures"`
	BestModel   string                   `json:"best_model"`
	BestMetric  Metric                   `json:"best_metric"`
	Report      string                   `json:"report"`
}

// MetricStats is the cross-symbol distribution of one metric of one model
type MetricStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// SymbolFailure records a symbol excluded from aggregation
type SymbolFailure struct {
	Symbol  string    `json:"symbol"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// SymbolModelFailure records a model that failed on a symbol that otherwise succeeded
type SymbolModelFailure struct {
	Symbol string `json:"symbol"`
	ModelFailure
}

// AggregateComparison folds many ComparisonRuns
type AggregateComparison struct {
	RunID            string                            `json:"run_id"`
	StartedAt        time.Time                         `json:"started_at"`
	Duration         time.Duration                     `json:"duration"`
	BestMetric       Metric                            `json:"best_metric"`
	SymbolsAttempted int                               `json:"symbols_attempted"`
	SymbolsSucceeded int                               `json:"symbols_succeeded"`
	FailedSymbols    []SymbolFailure                   `json:"failed_symbols"`
	ModelFailures    []SymbolModelFailure              `json:"model_failures"`
	Wins             map[string]int                    `json:"wins"`
	Stats            map[string]map[Metric]MetricStats `json:"stats"`
	TradableCounts   map[string]int                    `json:"tradable_counts"`
	Cancelled        bool                              `json:"cancelled"`
}

// TotalWins returns the sum of all per-model win counts
func (a *AggregateComparison) TotalWins() int {
	total := 0
	for _, n := range a.Wins {
		total += n
	}
	return total
}

// VolatilityClass buckets trailing annualized volatility
type VolatilityClass string

const (
	VolatilityLow    VolatilityClass = "low"
	VolatilityMedium VolatilityClass = "medium"
	VolatilityHigh   VolatilityClass = "high"
)

// TrendClass buckets trailing cumulative return
type TrendClass string

const (
	TrendBullish  TrendClass = "bullish"
	TrendBearish  TrendClass = "bearish"
	TrendSideways TrendClass = "sideways"
)

// Recommendation lists model families suited to a symbol's current regime
type Recommendation struct {
	Symbol               string          `json:"symbol"`
	AsOf                 time.Time       `json:"as_of"`
	Bars                 int             `json:"bars"`
	AnnualizedVolatility float64         `json:"annualized_volatility"`
	CumulativeReturn     float64         `json:"cumulative_return"`
	Volatility           VolatilityClass `json:"volatility"`
	Trend                TrendClass      `json:"trend"`
	Primary              []ModelFamily   `json:"primary"`
	Secondary            []ModelFamily   `json:"secondary"`
	Avoid                []ModelFamily   `json:"avoid"`
	Reasoning            []string        `json:"reasoning"`
}
