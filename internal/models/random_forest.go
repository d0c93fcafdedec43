package models

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/wonny/modelcmp/internal/contracts"
)

// RandomForestConfig configures a bagged ensemble of classification trees
type RandomForestConfig struct {
	NEstimators    int    `yaml:"n_estimators" json:"n_estimators"`         // 트리 수, 기본 100, [1,2000]
	MaxDepth       int    `yaml:"max_depth" json:"max_depth"`               // 기본 8, [1,32]
	MinSamplesLeaf int    `yaml:"min_samples_leaf" json:"min_samples_leaf"` // 기본 2, >= 1
	MaxFeatures    string `yaml:"max_features" json:"max_features"`         // sqrt | log2 | all, 기본 sqrt
	Bootstrap      bool   `yaml:"bootstrap" json:"bootstrap"`               // 기본 true
	MaxBins        int    `yaml:"max_bins" json:"max_bins"`                 // 기본 32, [2,255]
	Seed           int64  `yaml:"seed" json:"seed"`                         // 기본 42
}

// DefaultRandomForestConfig returns the documented defaults
func DefaultRandomForestConfig() RandomForestConfig {
	return RandomForestConfig{
		NEstimators:    100,
		MaxDepth:       8,
		MinSamplesLeaf: 2,
		MaxFeatures:    "sqrt",
		Bootstrap:      true,
		MaxBins:        32,
		Seed:           42,
	}
}

// Family implements Config
func (c RandomForestConfig) Family() contracts.ModelFamily {
	return contracts.FamilyRandomForest
}

// Validate implements Config
func (c RandomForestConfig) Validate() error {
	switch {
	case c.NEstimators < 1 || c.NEstimators > 2000:
		return fmt.Errorf("%w: n_estimators must be in [1,2000]", contracts.ErrInvalidInput)
	case c.MaxDepth < 1 || c.MaxDepth > 32:
		return fmt.Errorf("%w: max_depth must be in [1,32]", contracts.ErrInvalidInput)
	case c.MinSamplesLeaf < 1:
		return fmt.Errorf("%w: min_samples_leaf must be >= 1", contracts.ErrInvalidInput)
	case c.MaxFeatures != "sqrt" && c.MaxFeatures != "log2" && c.MaxFeatures != "all":
		return fmt.Errorf("%w: max_features must be sqrt, log2 or all", contracts.ErrInvalidInput)
	case c.MaxBins < 2 || c.MaxBins > 255:
		return fmt.Errorf("%w: max_bins must be in [2,255]", contracts.ErrInvalidInput)
	}
	return nil
}

// Params implements Config
func (c RandomForestConfig) Params() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     c.NEstimators,
		"max_depth":        c.MaxDepth,
		"min_samples_leaf": c.MinSamplesLeaf,
		"max_features":     c.MaxFeatures,
		"bootstrap":        c.Bootstrap,
		"max_bins":         c.MaxBins,
		"seed":             c.Seed,
	}
}

func (c RandomForestConfig) newEstimator() Estimator {
	return &RandomForest{Config: c}
}

func (c RandomForestConfig) featuresPerSplit(cols int) int {
	var k int
	switch c.MaxFeatures {
	case "sqrt":
		k = int(math.Sqrt(float64(cols)))
	case "log2":
		k = int(math.Log2(float64(cols)))
	default:
		return 0
	}
	if k < 1 {
		k = 1
	}
	return k
}

// RandomForest averages leaf class frequencies over its trees
type RandomForest struct {
	Config RandomForestConfig `json:"config"`
	Trees  []*Tree            `json:"trees"`
}

// Fit implements Estimator
func (m *RandomForest) Fit(ctx context.Context, X [][]float64, y []int) error {
	n := len(X)
	target := make([]float64, n)
	for i, v := range y {
		target[i] = float64(v)
	}

	bins := newBinner(X, m.Config.MaxBins)
	m.Trees = m.Trees[:0]

	for t := 0; t < m.Config.NEstimators; t++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("forest tree %d: %w", t, err)
		}

		// 트리별 독립 시드 → 트리 순서와 무관하게 재현 가능
		rng := rand.New(rand.NewSource(m.Config.Seed + int64(t)))

		idx := make([]int, n)
		for i := range idx {
			if m.Config.Bootstrap {
				idx[i] = rng.Intn(n)
			} else {
				idx[i] = i
			}
		}

		tb := &treeBuilder{
			binner: bins,
			target: target,
			params: treeParams{
				maxDepth:       m.Config.MaxDepth,
				minSamplesLeaf: m.Config.MinSamplesLeaf,
				maxFeatures:    m.Config.featuresPerSplit(len(X[0])),
			},
			rng:       rng,
			leafValue: func(idx []int) float64 { return mean(idx, target) },
		}
		m.Trees = append(m.Trees, tb.build(idx))
	}

	return nil
}

func (m *RandomForest) positive(X [][]float64) []float64 {
	p := make([]float64, len(X))
	for i, x := range X {
		s := 0.0
		for _, t := range m.Trees {
			s += t.Predict(x)
		}
		p[i] = s / float64(len(m.Trees))
	}
	return p
}

// Predict implements Estimator
func (m *RandomForest) Predict(X [][]float64) []int {
	return thresholdLabels(m.positive(X))
}

// PredictProbability implements Estimator
func (m *RandomForest) PredictProbability(X [][]float64) [][]float64 {
	return binaryProbabilities(m.positive(X))
}
