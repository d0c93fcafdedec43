package models

import (
	"context"
	"fmt"

	"github.com/wonny/modelcmp/internal/contracts"
)

// Factory holds the model specs a comparison runs by default and trains fresh
// models from specs. It is built once at startup and injected; there is no
// process-wide registry.
type Factory struct {
	defaults []Spec
}

// NewFactory creates a factory; with no specs it uses DefaultSpecs
func NewFactory(specs ...Spec) (*Factory, error) {
	if len(specs) == 0 {
		specs = DefaultSpecs()
	}

	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("%w: duplicate model name %q", contracts.ErrInvalidInput, s.Name)
		}
		seen[s.Name] = true
	}

	return &Factory{defaults: append([]Spec(nil), specs...)}, nil
}

// DefaultSpecs returns one spec per family with documented defaults
func DefaultSpecs() []Spec {
	return []Spec{
		{Name: "gradient_boosting", Config: DefaultGradientBoostingConfig()},
		{Name: "random_forest", Config: DefaultRandomForestConfig()},
		{Name: "neural_network", Config: DefaultNeuralNetworkConfig()},
		{Name: "linear_svm", Config: DefaultLinearSVMConfig()},
		{Name: "logistic_regression", Config: DefaultLogisticRegressionConfig()},
	}
}

// Specs returns a copy of the default specs
func (f *Factory) Specs() []Spec {
	return append([]Spec(nil), f.defaults...)
}

// Select returns the default specs with the given names, in the given order
func (f *Factory) Select(names ...string) ([]Spec, error) {
	if len(names) == 0 {
		return f.Specs(), nil
	}

	out := make([]Spec, 0, len(names))
	for _, name := range names {
		spec, ok := f.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown model %q", contracts.ErrInvalidInput, name)
		}
		out = append(out, spec)
	}
	return out, nil
}

// Lookup finds a default spec by name
func (f *Factory) Lookup(name string) (Spec, bool) {
	for _, s := range f.defaults {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// Train trains a new model for spec; every call gets its own scaler and estimator
func (f *Factory) Train(ctx context.Context, spec Spec, X [][]float64, y []int) (*TrainedModel, error) {
	return Train(ctx, spec, X, y)
}

// DefaultConfig returns the default config of a family
func DefaultConfig(family contracts.ModelFamily) (Config, error) {
	switch family {
	case contracts.FamilyGradientBoosting:
		return DefaultGradientBoostingConfig(), nil
	case contracts.FamilyRandomForest:
		return DefaultRandomForestConfig(), nil
	case contracts.FamilyNeuralNetwork:
		return DefaultNeuralNetworkConfig(), nil
	case contracts.FamilyLinearSVM:
		return DefaultLinearSVMConfig(), nil
	case contracts.FamilyLogisticRegression:
		return DefaultLogisticRegressionConfig(), nil
	default:
		return nil, fmt.Errorf("%w: unknown model family %q", contracts.ErrInvalidInput, family)
	}
}

// Families lists every supported family
func Families() []contracts.ModelFamily {
	return []contracts.ModelFamily{
		contracts.FamilyGradientBoosting,
		contracts.FamilyRandomForest,
		contracts.FamilyNeuralNetwork,
		contracts.FamilyLinearSVM,
		contracts.FamilyLogisticRegression,
	}
}
