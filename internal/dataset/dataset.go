package dataset

import (
	"fmt"
	"time"

	"github.com/wonny/modelcmp/internal/contracts"
)

// Params controls windowing, labeling and the chronological split
type Params struct {
	Lookback        int     `yaml:"lookback" json:"lookback"`                 // 입력 윈도우 일수 (1~250)
	Horizon         int     `yaml:"horizon" json:"horizon"`                   // 라벨 선행 일수 (1~60)
	ReturnThreshold float64 `yaml:"return_threshold" json:"return_threshold"` // 양성 라벨 최소 선행 수익률
	MinRows         int     `yaml:"min_rows" json:"min_rows"`                 // 최소 유효 행 수
	TrainRatio      float64 `yaml:"train_ratio" json:"train_ratio"`           // 학습 비율 (시간순 앞부분)
}

// DefaultParams returns lookback 30, horizon 5, threshold 2%, 100 rows, 80/20 split
func DefaultParams() Params {
	return Params{
		Lookback:        30,
		Horizon:         5,
		ReturnThreshold: 0.02,
		MinRows:         100,
		TrainRatio:      0.8,
	}
}

// Validate checks parameter ranges
func (p Params) Validate() error {
	if p.Lookback < 1 || p.Lookback > 250 {
		return fmt.Errorf("%w: lookback must be in [1,250], got %d", contracts.ErrInvalidInput, p.Lookback)
	}
	if p.Horizon < 1 || p.Horizon > 60 {
		return fmt.Errorf("%w: horizon must be in [1,60], got %d", contracts.ErrInvalidInput, p.Horizon)
	}
	if p.ReturnThreshold <= -1 || p.ReturnThreshold >= 1 {
		return fmt.Errorf("%w: return_threshold must be in (-1,1), got %f", contracts.ErrInvalidInput, p.ReturnThreshold)
	}
	if p.MinRows < 10 {
		return fmt.Errorf("%w: min_rows must be >= 10, got %d", contracts.ErrInvalidInput, p.MinRows)
	}
	if p.TrainRatio <= 0.5 || p.TrainRatio >= 1 {
		return fmt.Errorf("%w: train_ratio must be in (0.5,1), got %f", contracts.ErrInvalidInput, p.TrainRatio)
	}
	return nil
}

// Dataset is an immutable, time-ordered labeled dataset with a chronological split.
// Fields are unexported; Train/Test hand out copies so concurrent models can never
// mutate the shared arrays.
type Dataset struct {
	symbol   string
	params   Params
	width    int // 하루치 피처 수
	features [][]float64
	labels   []int
	prices   []float64
	dates    []time.Time
	split    int // [0,split) 학습, [split,n) 테스트
	dropped  int
}

// Split is a caller-owned copy of one side of the dataset
type Split struct {
	X      [][]float64
	Y      []int
	Prices []float64
	Dates  []time.Time
}

// Len returns the number of valid rows
func (d *Dataset) Len() int { return len(d.labels) }

// TrainLen returns the number of training rows
func (d *Dataset) TrainLen() int { return d.split }

// TestLen returns the number of test rows
func (d *Dataset) TestLen() int { return len(d.labels) - d.split }

// Features returns the flattened feature vector width (lookback × daily width)
func (d *Dataset) Features() int { return d.width * d.params.Lookback }

// Symbol returns the symbol the dataset was built for
func (d *Dataset) Symbol() string { return d.symbol }

// Params returns the build parameters
func (d *Dataset) Params() Params { return d.params }

// Train returns a copy of the earlier (training) rows
func (d *Dataset) Train() Split { return d.slice(0, d.split) }

// Test returns a copy of the later (test) rows
func (d *Dataset) Test() Split { return d.slice(d.split, len(d.labels)) }

func (d *Dataset) slice(from, to int) Split {
	n := to - from
	s := Split{
		X:      make([][]float64, n),
		Y:      make([]int, n),
		Prices: make([]float64, n),
		Dates:  make([]time.Time, n),
	}
	for i := 0; i < n; i++ {
		row := make([]float64, len(d.features[from+i]))
		copy(row, d.features[from+i])
		s.X[i] = row
	}
	copy(s.Y, d.labels[from:to])
	copy(s.Prices, d.prices[from:to])
	copy(s.Dates, d.dates[from:to])
	return s
}

// Summary describes the dataset for reports
func (d *Dataset) Summary() contracts.DatasetSummary {
	positives := 0
	for _, y := range d.labels {
		positives += y
	}

	summary := contracts.DatasetSummary{
		Rows:        d.Len(),
		TrainRows:   d.TrainLen(),
		TestRows:    d.TestLen(),
		Features:    d.Features(),
		Lookback:    d.params.Lookback,
		Horizon:     d.params.Horizon,
		Threshold:   d.params.ReturnThreshold,
		DroppedRows: d.dropped,
	}
	if d.Len() > 0 {
		summary.PositiveRate = float64(positives) / float64(d.Len())
		summary.Start = d.dates[0]
		summary.End = d.dates[d.Len()-1]
	}
	if d.TestLen() > 0 {
		summary.TestStart = d.dates[d.split]
	}
	return summary
}
