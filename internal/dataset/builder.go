package dataset

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/pkg/logger"
)

// Builder turns feature tables into lookback-windowed datasets
// ⭐ SSOT: 라벨링/분할 규칙은 여기서만
type Builder struct {
	params Params
	logger *logger.Logger
}

// NewBuilder creates a builder; params must already be validated
func NewBuilder(params Params, log *logger.Logger) *Builder {
	return &Builder{
		params: params,
		logger: log.Component("dataset"),
	}
}

// Params returns the builder parameters
func (b *Builder) Params() Params {
	return b.params
}

// Build windows, labels and splits the table.
// Row i (decision day) uses rows [i-L, i) as input and is labeled 1 when
// close[i+H]/close[i] - 1 >= threshold. Windows with missing values are dropped.
func (b *Builder) Build(table *contracts.FeatureTable) (*Dataset, error) {
	if err := b.params.Validate(); err != nil {
		return nil, err
	}
	if table == nil || len(table.Rows) == 0 {
		symbol := ""
		if table != nil {
			symbol = table.Symbol
		}
		return nil, &contracts.InsufficientDataError{Symbol: symbol, Rows: 0, Required: b.params.MinRows}
	}
	if !table.IsSorted() {
		return nil, fmt.Errorf("%w: rows for %s are not strictly time-ascending", contracts.ErrInvalidInput, table.Symbol)
	}

	L, H := b.params.Lookback, b.params.Horizon
	n := len(table.Rows)
	width := table.Width()

	// 일별 벡터 + 결측 여부 미리 계산
	daily := make([][]float64, n)
	valid := make([]bool, n)
	for i := range table.Rows {
		daily[i] = table.Vector(i, make([]float64, 0, width))
		valid[i] = allFinite(daily[i])
	}
	closes := table.Closes()

	ds := &Dataset{
		symbol: table.Symbol,
		params: b.params,
		width:  width,
	}

	for i := L; i+H < n; i++ {
		if !windowValid(valid, i-L, i) || !contracts.ValidPrice(closes[i]) || !contracts.ValidPrice(closes[i+H]) {
			ds.dropped++
			continue
		}

		vec := make([]float64, 0, width*L)
		for j := i - L; j < i; j++ {
			vec = append(vec, daily[j]...)
		}

		label := 0
		if closes[i+H]/closes[i]-1 >= b.params.ReturnThreshold {
			label = 1
		}

		ds.features = append(ds.features, vec)
		ds.labels = append(ds.labels, label)
		ds.prices = append(ds.prices, closes[i])
		ds.dates = append(ds.dates, table.Rows[i].Date)
	}

	if ds.Len() < b.params.MinRows {
		return nil, &contracts.InsufficientDataError{Symbol: table.Symbol, Rows: ds.Len(), Required: b.params.MinRows}
	}

	ds.split = int(math.Floor(float64(ds.Len()) * b.params.TrainRatio))

	b.logger.WithFields(map[string]interface{}{
		"symbol":     table.Symbol,
		"rows":       ds.Len(),
		"train_rows": ds.TrainLen(),
		"test_rows":  ds.TestLen(),
		"dropped":    ds.dropped,
		"features":   ds.Features(),
		"test_start": ds.dates[ds.split].Format(time.DateOnly),
	}).Debug("Dataset built")

	return ds, nil
}

func windowValid(valid []bool, from, to int) bool {
	for j := from; j < to; j++ {
		if !valid[j] {
			return false
		}
	}
	return true
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
