package models

import (
	"encoding/json"
	"fmt"

	"github.com/wonny/modelcmp/internal/contracts"
)

const artifactVersion = 1

type artifactEnvelope struct {
	Version   int                    `json:"version"`
	Name      string                 `json:"name"`
	Family    contracts.ModelFamily  `json:"family"`
	Params    map[string]interface{} `json:"params"`
	Scaler    *StandardScaler        `json:"scaler"`
	Estimator json.RawMessage        `json:"estimator"`
}

// Marshal serializes a trained model (scaler + estimator state) to JSON
func Marshal(m *TrainedModel) ([]byte, error) {
	est, err := json.Marshal(m.estimator)
	if err != nil {
		return nil, fmt.Errorf("marshal estimator %s: %w", m.name, err)
	}

	return json.Marshal(artifactEnvelope{
		Version:   artifactVersion,
		Name:      m.name,
		Family:    m.family,
		Params:    m.params,
		Scaler:    m.scaler,
		Estimator: est,
	})
}

// Unmarshal restores a model produced by Marshal
func Unmarshal(data []byte) (*TrainedModel, error) {
	var env artifactEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal model artifact: %w", err)
	}
	if env.Version != artifactVersion {
		return nil, fmt.Errorf("%w: artifact version %d not supported", contracts.ErrInvalidInput, env.Version)
	}
	if env.Scaler == nil {
		return nil, fmt.Errorf("%w: artifact %s has no scaler", contracts.ErrInvalidInput, env.Name)
	}

	var est Estimator
	switch env.Family {
	case contracts.FamilyGradientBoosting:
		est = &GradientBoosting{}
	case contracts.FamilyRandomForest:
		est = &RandomForest{}
	case contracts.FamilyNeuralNetwork:
		est = &NeuralNetwork{}
	case contracts.FamilyLinearSVM:
		est = &LinearSVM{}
	case contracts.FamilyLogisticRegression:
		est = &LogisticRegression{}
	default:
		return nil, fmt.Errorf("%w: unknown model family %q", contracts.ErrInvalidInput, env.Family)
	}

	if err := json.Unmarshal(env.Estimator, est); err != nil {
		return nil, fmt.Errorf("unmarshal %s estimator: %w", env.Family, err)
	}

	return &TrainedModel{
		name:      env.Name,
		family:    env.Family,
		params:    env.Params,
		scaler:    env.Scaler,
		estimator: est,
	}, nil
}
