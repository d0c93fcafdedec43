package models

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/wonny/modelcmp/internal/contracts"
)

// GradientBoostingConfig configures binary log-loss gradient boosting over histogram trees
type GradientBoostingConfig struct {
	NEstimators    int     `yaml:"n_estimators" json:"n_estimators"`         // 부스팅 라운드, 기본 100, [1,2000]
	LearningRate   float64 `yaml:"learning_rate" json:"learning_rate"`       // 축소 계수, 기본 0.1, (0,1]
	MaxDepth       int     `yaml:"max_depth" json:"max_depth"`               // 트리 깊이, 기본 3, [1,16]
	MinSamplesLeaf int     `yaml:"min_samples_leaf" json:"min_samples_leaf"` // 기본 5, >= 1
	Subsample      float64 `yaml:"subsample" json:"subsample"`               // 라운드별 행 샘플 비율, 기본 1.0, (0,1]
	MaxBins        int     `yaml:"max_bins" json:"max_bins"`                 // 히스토그램 구간 수, 기본 32, [2,255]
	Seed           int64   `yaml:"seed" json:"seed"`                         // 기본 42
}

// DefaultGradientBoostingConfig returns the documented defaults
func DefaultGradientBoostingConfig() GradientBoostingConfig {
	return GradientBoostingConfig{
		NEstimators:    100,
		LearningRate:   0.1,
		MaxDepth:       3,
		MinSamplesLeaf: 5,
		Subsample:      1.0,
		MaxBins:        32,
		Seed:           42,
	}
}

// Family implements Config
func (c GradientBoostingConfig) Family() contracts.ModelFamily {
	return contracts.FamilyGradientBoosting
}

// Validate implements Config
func (c GradientBoostingConfig) Validate() error {
	switch {
	case c.NEstimators < 1 || c.NEstimators > 2000:
		return fmt.Errorf("%w: n_estimators must be in [1,2000]", contracts.ErrInvalidInput)
	case c.LearningRate <= 0 || c.LearningRate > 1:
		return fmt.Errorf("%w: learning_rate must be in (0,1]", contracts.ErrInvalidInput)
	case c.MaxDepth < 1 || c.MaxDepth > 16:
		return fmt.Errorf("%w: max_depth must be in [1,16]", contracts.ErrInvalidInput)
	case c.MinSamplesLeaf < 1:
		return fmt.Errorf("%w: min_samples_leaf must be >= 1", contracts.ErrInvalidInput)
	case c.Subsample <= 0 || c.Subsample > 1:
		return fmt.Errorf("%w: subsample must be in (0,1]", contracts.ErrInvalidInput)
	case c.MaxBins < 2 || c.MaxBins > 255:
		return fmt.Errorf("%w: max_bins must be in [2,255]", contracts.ErrInvalidInput)
	}
	return nil
}

// Params implements Config
func (c GradientBoostingConfig) Params() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     c.NEstimators,
		"learning_rate":    c.LearningRate,
		"max_depth":        c.MaxDepth,
		"min_samples_leaf": c.MinSamplesLeaf,
		"subsample":        c.Subsample,
		"max_bins":         c.MaxBins,
		"seed":             c.Seed,
	}
}

func (c GradientBoostingConfig) newEstimator() Estimator {
	return &GradientBoosting{Config: c}
}

// GradientBoosting is an additive ensemble of regression trees on the log-odds
type GradientBoosting struct {
	Config GradientBoostingConfig `json:"config"`
	Init   float64                `json:"init"` // 초기 log-odds
	Trees  []*Tree                `json:"trees"`
}

// Fit implements Estimator
func (m *GradientBoosting) Fit(ctx context.Context, X [][]float64, y []int) error {
	n := len(X)
	p := math.Min(math.Max(classBalance(y), 1e-6), 1-1e-6)
	m.Init = math.Log(p / (1 - p))
	m.Trees = m.Trees[:0]

	rng := rand.New(rand.NewSource(m.Config.Seed))
	bins := newBinner(X, m.Config.MaxBins)

	raw := make([]float64, n)
	grad := make([]float64, n)
	hess := make([]float64, n)
	for i := range raw {
		raw[i] = m.Init
	}

	tb := &treeBuilder{
		binner: bins,
		target: grad,
		params: treeParams{maxDepth: m.Config.MaxDepth, minSamplesLeaf: m.Config.MinSamplesLeaf},
		rng:    rng,
		leafValue: func(idx []int) float64 {
			// Newton step: Σg / Σh
			g, h := 0.0, 0.0
			for _, i := range idx {
				g += grad[i]
				h += hess[i]
			}
			if h < 1e-12 {
				return 0
			}
			return g / h
		},
	}

	sampleSize := int(math.Max(1, math.Round(m.Config.Subsample*float64(n))))
	for round := 0; round < m.Config.NEstimators; round++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("boosting round %d: %w", round, err)
		}

		for i := range raw {
			prob := sigmoid(raw[i])
			grad[i] = float64(y[i]) - prob
			hess[i] = prob * (1 - prob)
		}

		var idx []int
		if sampleSize < n {
			idx = rng.Perm(n)[:sampleSize]
			sort.Ints(idx)
		} else {
			idx = make([]int, n)
			for i := range idx {
				idx[i] = i
			}
		}

		tree := tb.build(idx)
		m.Trees = append(m.Trees, tree)
		for i := range raw {
			raw[i] += m.Config.LearningRate * tree.Predict(X[i])
		}
	}

	return nil
}

func (m *GradientBoosting) score(x []float64) float64 {
	s := m.Init
	for _, t := range m.Trees {
		s += m.Config.LearningRate * t.Predict(x)
	}
	return s
}

func (m *GradientBoosting) positive(X [][]float64) []float64 {
	p := make([]float64, len(X))
	for i, x := range X {
		p[i] = sigmoid(m.score(x))
	}
	return p
}

// Predict implements Estimator
func (m *GradientBoosting) Predict(X [][]float64) []int {
	return thresholdLabels(m.positive(X))
}

// PredictProbability implements Estimator
func (m *GradientBoosting) PredictProbability(X [][]float64) [][]float64 {
	return binaryProbabilities(m.positive(X))
}
