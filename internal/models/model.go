package models

import (
	"context"
	"fmt"

	"github.com/wonny/modelcmp/internal/contracts"
)

// Estimator is the capability set every model family implements.
// Inputs are already normalized; PredictProbability returns n×2 rows [P(0), P(1)].
type Estimator interface {
	Fit(ctx context.Context, X [][]float64, y []int) error
	Predict(X [][]float64) []int
	PredictProbability(X [][]float64) [][]float64
}

// Config is the typed hyperparameter block of one model family
type Config interface {
	Family() contracts.ModelFamily
	Validate() error
	Params() map[string]interface{}
	newEstimator() Estimator
}

// Spec names one model to compare; immutable after creation
type Spec struct {
	Name   string
	Config Config
}

// Validate checks the name and the family config
func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: model spec without name", contracts.ErrInvalidInput)
	}
	if s.Config == nil {
		return fmt.Errorf("%w: model %s has no config", contracts.ErrInvalidInput, s.Name)
	}
	if err := s.Config.Validate(); err != nil {
		return fmt.Errorf("model %s: %w", s.Name, err)
	}
	return nil
}

// TrainedModel owns a fitted scaler and a fitted estimator; never mutated after training
type TrainedModel struct {
	name      string
	family    contracts.ModelFamily
	params    map[string]interface{}
	scaler    *StandardScaler
	estimator Estimator
}

// Train fits a fresh scaler and estimator for spec on training rows only
func Train(ctx context.Context, spec Spec, X [][]float64, y []int) (*TrainedModel, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := checkTrainingSet(X, y); err != nil {
		return nil, fmt.Errorf("model %s: %w", spec.Name, err)
	}

	scaler, err := FitScaler(X)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", spec.Name, err)
	}
	Z, err := scaler.Transform(X)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", spec.Name, err)
	}

	est := spec.Config.newEstimator()
	if err := est.Fit(ctx, Z, y); err != nil {
		return nil, fmt.Errorf("model %s fit: %w", spec.Name, err)
	}

	return &TrainedModel{
		name:      spec.Name,
		family:    spec.Config.Family(),
		params:    spec.Config.Params(),
		scaler:    scaler,
		estimator: est,
	}, nil
}

// Name returns the spec name
func (m *TrainedModel) Name() string { return m.name }

// Family returns the model family
func (m *TrainedModel) Family() contracts.ModelFamily { return m.family }

// Params returns a copy of the hyperparameters
func (m *TrainedModel) Params() map[string]interface{} {
	out := make(map[string]interface{}, len(m.params))
	for k, v := range m.params {
		out[k] = v
	}
	return out
}

// Predict returns 0/1 labels for raw (unnormalized) rows
func (m *TrainedModel) Predict(X [][]float64) ([]int, error) {
	Z, err := m.scaler.Transform(X)
	if err != nil {
		return nil, fmt.Errorf("model %s predict: %w", m.name, err)
	}
	return m.estimator.Predict(Z), nil
}

// PredictProbability returns [P(0), P(1)] per raw row
func (m *TrainedModel) PredictProbability(X [][]float64) ([][]float64, error) {
	Z, err := m.scaler.Transform(X)
	if err != nil {
		return nil, fmt.Errorf("model %s predict: %w", m.name, err)
	}
	return m.estimator.PredictProbability(Z), nil
}

func checkTrainingSet(X [][]float64, y []int) error {
	if len(X) == 0 {
		return fmt.Errorf("%w: empty training set", contracts.ErrInvalidInput)
	}
	if len(X) != len(y) {
		return fmt.Errorf("%w: %d rows but %d labels", contracts.ErrInvalidInput, len(X), len(y))
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return fmt.Errorf("%w: label %d at row %d is not binary", contracts.ErrInvalidInput, v, i)
		}
	}
	return nil
}

// classBalance returns the share of positive labels
func classBalance(y []int) float64 {
	pos := 0
	for _, v := range y {
		pos += v
	}
	return float64(pos) / float64(len(y))
}
