package aggregation

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/modelcmp/internal/contracts"
)

// accumulator collects the values of one metric across symbols
type accumulator struct {
	values []float64
}

func (a *accumulator) add(x float64) {
	a.values = append(a.values, x)
}

// stats returns the population statistics
func (a *accumulator) stats() contracts.MetricStats {
	if len(a.values) == 0 {
		return contracts.MetricStats{}
	}
	mean, variance := stat.PopMeanVariance(a.values, nil)
	return contracts.MetricStats{
		Count: len(a.values),
		Mean:  mean,
		Std:   math.Sqrt(variance),
		Min:   floats.Min(a.values),
		Max:   floats.Max(a.values),
	}
}
