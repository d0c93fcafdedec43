package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler is a z-score normalizer fitted on training rows only
type StandardScaler struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// FitScaler computes per-column mean and population std
// std 가 1e-10 미만인 상수 컬럼은 1 로 대체
func FitScaler(X [][]float64) (*StandardScaler, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("scaler fit: empty matrix")
	}

	cols := len(X[0])
	s := &StandardScaler{
		Means: make([]float64, cols),
		Stds:  make([]float64, cols),
	}

	column := make([]float64, len(X))
	for _, row := range X {
		if len(row) != cols {
			return nil, fmt.Errorf("scaler fit: ragged matrix (%d vs %d columns)", len(row), cols)
		}
	}
	for j := 0; j < cols; j++ {
		for i, row := range X {
			column[i] = row[j]
		}
		mean, variance := stat.PopMeanVariance(column, nil)
		s.Means[j] = mean
		s.Stds[j] = math.Sqrt(variance)
		if s.Stds[j] < 1e-10 {
			s.Stds[j] = 1
		}
	}

	return s, nil
}

// Width returns the number of columns the scaler was fitted on
func (s *StandardScaler) Width() int {
	return len(s.Means)
}

// Transform returns a normalized copy of X
func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(s.Means) {
			return nil, fmt.Errorf("scaler transform: row %d has %d columns, fitted on %d", i, len(row), len(s.Means))
		}
		z := make([]float64, len(row))
		for j, v := range row {
			z[j] = (v - s.Means[j]) / s.Stds[j]
		}
		out[i] = z
	}
	return out, nil
}
