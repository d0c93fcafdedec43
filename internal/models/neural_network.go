package models

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/wonny/modelcmp/internal/contracts"
)

// NeuralNetworkConfig configures a one-hidden-layer ReLU network with a softmax output
type NeuralNetworkConfig struct {
	HiddenUnits        int     `yaml:"hidden_units" json:"hidden_units"`               // 은닉 유닛, 기본 32, [1,1024]
	Epochs             int     `yaml:"epochs" json:"epochs"`                           // 기본 50, [1,1000]
	LearningRate       float64 `yaml:"learning_rate" json:"learning_rate"`             // SGD 학습률, 기본 0.01, (0,1]
	L2                 float64 `yaml:"l2" json:"l2"`                                   // 가중치 감쇠, 기본 1e-4, >= 0
	ValidationFraction float64 `yaml:"validation_fraction" json:"validation_fraction"` // 학습셋 뒤쪽 검증 비율, 기본 0.1, [0,0.5)
	Patience           int     `yaml:"patience" json:"patience"`                       // 조기 종료 인내 epoch, 기본 5, >= 1
	BalanceClasses     bool    `yaml:"balance_classes" json:"balance_classes"`         // 클래스 가중치 보정, 기본 true
	Seed               int64   `yaml:"seed" json:"seed"`                               // 가중치 초기화, 기본 42
}

// DefaultNeuralNetworkConfig returns the documented defaults
func DefaultNeuralNetworkConfig() NeuralNetworkConfig {
	return NeuralNetworkConfig{
		HiddenUnits:        32,
		Epochs:             50,
		LearningRate:       0.01,
		L2:                 1e-4,
		ValidationFraction: 0.1,
		Patience:           5,
		BalanceClasses:     true,
		Seed:               42,
	}
}

// Family implements Config
func (c NeuralNetworkConfig) Family() contracts.ModelFamily {
	return contracts.FamilyNeuralNetwork
}

// Validate implements Config
func (c NeuralNetworkConfig) Validate() error {
	switch {
	case c.HiddenUnits < 1 || c.HiddenUnits > 1024:
		return fmt.Errorf("%w: hidden_units must be in [1,1024]", contracts.ErrInvalidInput)
	case c.Epochs < 1 || c.Epochs > 1000:
		return fmt.Errorf("%w: epochs must be in [1,1000]", contracts.ErrInvalidInput)
	case c.LearningRate <= 0 || c.LearningRate > 1:
		return fmt.Errorf("%w: learning_rate must be in (0,1]", contracts.ErrInvalidInput)
	case c.L2 < 0:
		return fmt.Errorf("%w: l2 must be >= 0", contracts.ErrInvalidInput)
	case c.ValidationFraction < 0 || c.ValidationFraction >= 0.5:
		return fmt.Errorf("%w: validation_fraction must be in [0,0.5)", contracts.ErrInvalidInput)
	case c.Patience < 1:
		return fmt.Errorf("%w: patience must be >= 1", contracts.ErrInvalidInput)
	}
	return nil
}

// Params implements Config
func (c NeuralNetworkConfig) Params() map[string]interface{} {
	return map[string]interface{}{
		"hidden_units":        c.HiddenUnits,
		"epochs":              c.Epochs,
		"learning_rate":       c.LearningRate,
		"l2":                  c.L2,
		"validation_fraction": c.ValidationFraction,
		"patience":            c.Patience,
		"balance_classes":     c.BalanceClasses,
		"seed":                c.Seed,
	}
}

func (c NeuralNetworkConfig) newEstimator() Estimator {
	return &NeuralNetwork{Config: c}
}

// NeuralNetwork is a feed-forward classifier trained with per-sample SGD in time order
type NeuralNetwork struct {
	Config NeuralNetworkConfig `json:"config"`
	W1     [][]float64         `json:"w1"` // input × hidden
	B1     []float64           `json:"b1"`
	W2     [][]float64         `json:"w2"` // hidden × 2
	B2     []float64           `json:"b2"`
	Epochs int                 `json:"epochs_run"`
}

// Fit implements Estimator.
// The last ValidationFraction of the (time-ordered) training rows drive early
// stopping; the weights of the best validation epoch are kept.
func (m *NeuralNetwork) Fit(ctx context.Context, X [][]float64, y []int) error {
	inputs := len(X[0])
	m.init(inputs)

	split := len(X) - int(float64(len(X))*m.Config.ValidationFraction)
	if split < 1 {
		split = len(X)
	}
	trainX, trainY := X[:split], y[:split]
	valX, valY := X[split:], y[split:]

	weights := [2]float64{1, 1}
	if m.Config.BalanceClasses {
		pos := classBalance(trainY)
		if pos > 0 && pos < 1 {
			weights[0] = 0.5 / (1 - pos)
			weights[1] = 0.5 / pos
		}
	}

	best := math.Inf(1)
	var bestSnapshot *NeuralNetwork
	patience := 0
	hidden := make([]float64, m.Config.HiddenUnits)

	for epoch := 0; epoch < m.Config.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}

		trainLoss := 0.0
		for i, x := range trainX {
			probs := m.forward(x, hidden)
			w := weights[trainY[i]]
			trainLoss += -math.Log(math.Max(probs[trainY[i]], 1e-12)) * w
			m.backpropagate(x, hidden, probs, trainY[i], w)
		}
		m.Epochs = epoch + 1

		if math.IsNaN(trainLoss) || math.IsInf(trainLoss, 0) {
			return fmt.Errorf("training diverged at epoch %d (loss=%v)", epoch, trainLoss)
		}

		if len(valX) == 0 {
			continue
		}
		valLoss := m.loss(valX, valY, hidden)
		if valLoss < best-1e-9 {
			best = valLoss
			bestSnapshot = m.clone()
			patience = 0
		} else {
			patience++
			if patience >= m.Config.Patience {
				break
			}
		}
	}

	if bestSnapshot != nil {
		*m = *bestSnapshot
	}
	return nil
}

func (m *NeuralNetwork) init(inputs int) {
	rng := rand.New(rand.NewSource(m.Config.Seed))
	h := m.Config.HiddenUnits

	// He 초기화
	scale1 := math.Sqrt(2 / float64(inputs))
	m.W1 = make([][]float64, inputs)
	for i := range m.W1 {
		m.W1[i] = make([]float64, h)
		for j := range m.W1[i] {
			m.W1[i][j] = rng.NormFloat64() * scale1
		}
	}
	m.B1 = make([]float64, h)

	scale2 := math.Sqrt(2 / float64(h))
	m.W2 = make([][]float64, h)
	for i := range m.W2 {
		m.W2[i] = []float64{rng.NormFloat64() * scale2, rng.NormFloat64() * scale2}
	}
	m.B2 = make([]float64, 2)
}

// forward fills hidden with ReLU activations and returns softmax probabilities
func (m *NeuralNetwork) forward(x, hidden []float64) [2]float64 {
	for j := range hidden {
		hidden[j] = m.B1[j]
	}
	for i, v := range x {
		if v == 0 {
			continue
		}
		row := m.W1[i]
		for j := range hidden {
			hidden[j] += v * row[j]
		}
	}
	for j, v := range hidden {
		if v < 0 {
			hidden[j] = 0
		}
	}

	z := [2]float64{m.B2[0], m.B2[1]}
	for j, v := range hidden {
		z[0] += v * m.W2[j][0]
		z[1] += v * m.W2[j][1]
	}

	// 수치 안정 softmax
	maxZ := math.Max(z[0], z[1])
	e0, e1 := math.Exp(z[0]-maxZ), math.Exp(z[1]-maxZ)
	return [2]float64{e0 / (e0 + e1), e1 / (e0 + e1)}
}

func (m *NeuralNetwork) backpropagate(x, hidden []float64, probs [2]float64, target int, weight float64) {
	lr := m.Config.LearningRate
	l2 := m.Config.L2

	var outErr [2]float64
	for k := 0; k < 2; k++ {
		outErr[k] = probs[k] * weight
		if k == target {
			outErr[k] -= weight
		}
	}

	hiddenErr := make([]float64, len(hidden))
	for j, h := range hidden {
		if h <= 0 {
			continue
		}
		hiddenErr[j] = outErr[0]*m.W2[j][0] + outErr[1]*m.W2[j][1]
	}

	for j, h := range hidden {
		for k := 0; k < 2; k++ {
			m.W2[j][k] -= lr * (outErr[k]*h + l2*m.W2[j][k])
		}
	}
	m.B2[0] -= lr * outErr[0]
	m.B2[1] -= lr * outErr[1]

	for i, v := range x {
		row := m.W1[i]
		for j, e := range hiddenErr {
			if e == 0 {
				continue
			}
			row[j] -= lr * (e*v + l2*row[j])
		}
	}
	for j, e := range hiddenErr {
		m.B1[j] -= lr * e
	}
}

func (m *NeuralNetwork) loss(X [][]float64, y []int, hidden []float64) float64 {
	total := 0.0
	for i, x := range X {
		probs := m.forward(x, hidden)
		total += -math.Log(math.Max(probs[y[i]], 1e-12))
	}
	return total / float64(len(X))
}

func (m *NeuralNetwork) clone() *NeuralNetwork {
	c := &NeuralNetwork{
		Config: m.Config,
		B1:     append([]float64(nil), m.B1...),
		B2:     append([]float64(nil), m.B2...),
		W1:     make([][]float64, len(m.W1)),
		W2:     make([][]float64, len(m.W2)),
		Epochs: m.Epochs,
	}
	for i := range m.W1 {
		c.W1[i] = append([]float64(nil), m.W1[i]...)
	}
	for i := range m.W2 {
		c.W2[i] = append([]float64(nil), m.W2[i]...)
	}
	return c
}

func (m *NeuralNetwork) positive(X [][]float64) []float64 {
	hidden := make([]float64, m.Config.HiddenUnits)
	p := make([]float64, len(X))
	for i, x := range X {
		p[i] = m.forward(x, hidden)[1]
	}
	return p
}

// Predict implements Estimator
func (m *NeuralNetwork) Predict(X [][]float64) []int {
	return thresholdLabels(m.positive(X))
}

// PredictProbability implements Estimator
func (m *NeuralNetwork) PredictProbability(X [][]float64) [][]float64 {
	return binaryProbabilities(m.positive(X))
}
