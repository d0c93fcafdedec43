package models

import (
	"context"
	"fmt"
	"math"

	"github.com/wonny/modelcmp/internal/contracts"
)

// LinearSVMConfig configures a hinge-loss linear classifier trained with Pegasos
type LinearSVMConfig struct {
	Lambda           float64 `yaml:"lambda" json:"lambda"`                       // 정규화 강도, 기본 1e-3, > 0
	Epochs           int     `yaml:"epochs" json:"epochs"`                       // 기본 30, [1,1000]
	ProbabilityScale float64 `yaml:"probability_scale" json:"probability_scale"` // 결정값 → 확률 sigmoid 기울기, 기본 1, > 0
}

// DefaultLinearSVMConfig returns the documented defaults
func DefaultLinearSVMConfig() LinearSVMConfig {
	return LinearSVMConfig{Lambda: 1e-3, Epochs: 30, ProbabilityScale: 1}
}

// Family implements Config
func (c LinearSVMConfig) Family() contracts.ModelFamily {
	return contracts.FamilyLinearSVM
}

// Validate implements Config
func (c LinearSVMConfig) Validate() error {
	switch {
	case c.Lambda <= 0:
		return fmt.Errorf("%w: lambda must be > 0", contracts.ErrInvalidInput)
	case c.Epochs < 1 || c.Epochs > 1000:
		return fmt.Errorf("%w: epochs must be in [1,1000]", contracts.ErrInvalidInput)
	case c.ProbabilityScale <= 0:
		return fmt.Errorf("%w: probability_scale must be > 0", contracts.ErrInvalidInput)
	}
	return nil
}

// Params implements Config
func (c LinearSVMConfig) Params() map[string]interface{} {
	return map[string]interface{}{
		"lambda":            c.Lambda,
		"epochs":            c.Epochs,
		"probability_scale": c.ProbabilityScale,
	}
}

func (c LinearSVMConfig) newEstimator() Estimator {
	return &LinearSVM{Config: c}
}

// LinearSVM has no native probability output. PredictProbability squashes the
// decision score through a sigmoid; the result is monotonic in the score but not calibrated.
type LinearSVM struct {
	Config  LinearSVMConfig `json:"config"`
	Weights []float64       `json:"weights"` // 마지막 원소는 bias
}

// Fit implements Estimator.
// Rows are visited in time order, so training is deterministic without a seed.
func (m *LinearSVM) Fit(ctx context.Context, X [][]float64, y []int) error {
	d := len(X[0]) + 1
	m.Weights = make([]float64, d)
	radius := 1 / math.Sqrt(m.Config.Lambda)

	t := 0
	for epoch := 0; epoch < m.Config.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}
		for i, x := range X {
			t++
			eta := 1 / (m.Config.Lambda * float64(t))
			label := -1.0
			if y[i] == 1 {
				label = 1
			}
			margin := label * m.decision(x)

			shrink := 1 - eta*m.Config.Lambda
			for j := range m.Weights {
				m.Weights[j] *= shrink
			}
			if margin < 1 {
				for j, v := range x {
					m.Weights[j] += eta * label * v
				}
				m.Weights[d-1] += eta * label
			}

			// ||w|| <= 1/sqrt(lambda) 로 투영
			norm := 0.0
			for _, w := range m.Weights {
				norm += w * w
			}
			norm = math.Sqrt(norm)
			if norm > radius {
				for j := range m.Weights {
					m.Weights[j] *= radius / norm
				}
			}
		}
	}
	return nil
}

func (m *LinearSVM) decision(x []float64) float64 {
	s := m.Weights[len(m.Weights)-1]
	for j, v := range x {
		s += m.Weights[j] * v
	}
	return s
}

// DecisionFunction returns the signed distance-like score per row
func (m *LinearSVM) DecisionFunction(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = m.decision(x)
	}
	return out
}

// Predict implements Estimator
func (m *LinearSVM) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i, s := range m.DecisionFunction(X) {
		if s >= 0 {
			out[i] = 1
		}
	}
	return out
}

// PredictProbability implements Estimator
func (m *LinearSVM) PredictProbability(X [][]float64) [][]float64 {
	scores := m.DecisionFunction(X)
	p := make([]float64, len(scores))
	for i, s := range scores {
		p[i] = sigmoid(m.Config.ProbabilityScale * s)
	}
	return binaryProbabilities(p)
}

// LogisticRegressionConfig configures full-batch gradient descent logistic regression
type LogisticRegressionConfig struct {
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"` // 기본 0.05, (0,10]
	Epochs       int     `yaml:"epochs" json:"epochs"`               // 기본 200, [1,10000]
	L2           float64 `yaml:"l2" json:"l2"`                       // 기본 1e-3, >= 0
}

// DefaultLogisticRegressionConfig returns the documented defaults
func DefaultLogisticRegressionConfig() LogisticRegressionConfig {
	return LogisticRegressionConfig{LearningRate: 0.05, Epochs: 200, L2: 1e-3}
}

// Family implements Config
func (c LogisticRegressionConfig) Family() contracts.ModelFamily {
	return contracts.FamilyLogisticRegression
}

// Validate implements Config
func (c LogisticRegressionConfig) Validate() error {
	switch {
	case c.LearningRate <= 0 || c.LearningRate > 10:
		return fmt.Errorf("%w: learning_rate must be in (0,10]", contracts.ErrInvalidInput)
	case c.Epochs < 1 || c.Epochs > 10000:
		return fmt.Errorf("%w: epochs must be in [1,10000]", contracts.ErrInvalidInput)
	case c.L2 < 0:
		return fmt.Errorf("%w: l2 must be >= 0", contracts.ErrInvalidInput)
	}
	return nil
}

// Params implements Config
func (c LogisticRegressionConfig) Params() map[string]interface{} {
	return map[string]interface{}{
		"learning_rate": c.LearningRate,
		"epochs":        c.Epochs,
		"l2":            c.L2,
	}
}

func (c LogisticRegressionConfig) newEstimator() Estimator {
	return &LogisticRegression{Config: c}
}

// LogisticRegression is a linear model with native probability output
type LogisticRegression struct {
	Config  LogisticRegressionConfig `json:"config"`
	Weights []float64                `json:"weights"`
	Bias    float64                  `json:"bias"`
}

// Fit implements Estimator
func (m *LogisticRegression) Fit(ctx context.Context, X [][]float64, y []int) error {
	d := len(X[0])
	n := float64(len(X))
	m.Weights = make([]float64, d)
	m.Bias = 0
	grad := make([]float64, d)

	for epoch := 0; epoch < m.Config.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}

		for j := range grad {
			grad[j] = 0
		}
		gb := 0.0
		for i, x := range X {
			e := m.positive1(x) - float64(y[i])
			for j, v := range x {
				grad[j] += e * v
			}
			gb += e
		}

		for j := range m.Weights {
			m.Weights[j] -= m.Config.LearningRate * (grad[j]/n + m.Config.L2*m.Weights[j])
		}
		m.Bias -= m.Config.LearningRate * gb / n
	}

	if math.IsNaN(m.Bias) {
		return fmt.Errorf("training diverged")
	}
	return nil
}

func (m *LogisticRegression) positive1(x []float64) float64 {
	s := m.Bias
	for j, v := range x {
		s += m.Weights[j] * v
	}
	return sigmoid(s)
}

func (m *LogisticRegression) positive(X [][]float64) []float64 {
	p := make([]float64, len(X))
	for i, x := range X {
		p[i] = m.positive1(x)
	}
	return p
}

// Predict implements Estimator
func (m *LogisticRegression) Predict(X [][]float64) []int {
	return thresholdLabels(m.positive(X))
}

// PredictProbability implements Estimator
func (m *LogisticRegression) PredictProbability(X [][]float64) [][]float64 {
	return binaryProbabilities(m.positive(X))
}
