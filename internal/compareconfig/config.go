package compareconfig

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/modelcmp/internal/backtest"
	"github.com/wonny/modelcmp/internal/comparison"
	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/internal/dataset"
	"github.com/wonny/modelcmp/internal/models"
)

// Profile는 모델 비교 실행의 전체 설정
type Profile struct {
	Meta      Meta            `yaml:"meta" json:"meta"`
	Dataset   dataset.Params  `yaml:"dataset" json:"dataset"`
	Backtest  backtest.Config `yaml:"backtest" json:"backtest"`
	Selection Selection       `yaml:"selection" json:"selection"`
	Runtime   Runtime         `yaml:"runtime" json:"runtime"`
	Models    []ModelEntry    `yaml:"models" json:"models"`
}

// Meta 메타 정보
type Meta struct {
	ProfileID string `yaml:"profile_id" json:"profile_id"`
	Version   string `yaml:"version" json:"version"`
}

// Selection 베스트 모델 선정 기준
type Selection struct {
	Metric contracts.Metric `yaml:"metric" json:"metric"`
}

// Runtime 실행 제한
type Runtime struct {
	ModelTimeout      time.Duration `yaml:"model_timeout" json:"model_timeout"`
	Parallelism       int           `yaml:"parallelism" json:"parallelism"`               // 종목 내 동시 모델 수
	SymbolParallelism int           `yaml:"symbol_parallelism" json:"symbol_parallelism"` // 배치 동시 종목 수
}

// ModelEntry is one named model; exactly one family block matching Family is set
type ModelEntry struct {
	Name               string                           `yaml:"name" json:"name"`
	Family             contracts.ModelFamily            `yaml:"family" json:"family"`
	GradientBoosting   *models.GradientBoostingConfig   `yaml:"gradient_boosting,omitempty" json:"gradient_boosting,omitempty"`
	RandomForest       *models.RandomForestConfig       `yaml:"random_forest,omitempty" json:"random_forest,omitempty"`
	NeuralNetwork      *models.NeuralNetworkConfig      `yaml:"neural_network,omitempty" json:"neural_network,omitempty"`
	LinearSVM          *models.LinearSVMConfig          `yaml:"linear_svm,omitempty" json:"linear_svm,omitempty"`
	LogisticRegression *models.LogisticRegressionConfig `yaml:"logistic_regression,omitempty" json:"logistic_regression,omitempty"`
}

// Default returns the built-in profile: every family with its defaults
func Default() *Profile {
	opts := comparison.DefaultOptions()
	p := &Profile{
		Meta:      Meta{ProfileID: "default", Version: "1"},
		Dataset:   dataset.DefaultParams(),
		Backtest:  backtest.DefaultConfig(),
		Selection: Selection{Metric: comparison.DefaultMetric},
		Runtime: Runtime{
			ModelTimeout:      opts.ModelTimeout,
			Parallelism:       opts.Parallelism,
			SymbolParallelism: 2,
		},
	}
	for _, spec := range models.DefaultSpecs() {
		p.Models = append(p.Models, entryFor(spec))
	}
	return p
}

func entryFor(spec models.Spec) ModelEntry {
	e := ModelEntry{Name: spec.Name, Family: spec.Config.Family()}
	switch c := spec.Config.(type) {
	case models.GradientBoostingConfig:
		e.GradientBoosting = &c
	case models.RandomForestConfig:
		e.RandomForest = &c
	case models.NeuralNetworkConfig:
		e.NeuralNetwork = &c
	case models.LinearSVMConfig:
		e.LinearSVM = &c
	case models.LogisticRegressionConfig:
		e.LogisticRegression = &c
	}
	return e
}

// Spec converts the entry into a model spec; a missing family block means family defaults
func (e ModelEntry) Spec() (models.Spec, error) {
	var cfg models.Config
	switch e.Family {
	case contracts.FamilyGradientBoosting:
		if e.GradientBoosting != nil {
			cfg = *e.GradientBoosting
		}
	case contracts.FamilyRandomForest:
		if e.RandomForest != nil {
			cfg = *e.RandomForest
		}
	case contracts.FamilyNeuralNetwork:
		if e.NeuralNetwork != nil {
			cfg = *e.NeuralNetwork
		}
	case contracts.FamilyLinearSVM:
		if e.LinearSVM != nil {
			cfg = *e.LinearSVM
		}
	case contracts.FamilyLogisticRegression:
		if e.LogisticRegression != nil {
			cfg = *e.LogisticRegression
		}
	default:
		return models.Spec{}, fmt.Errorf("%w: unknown model family %q", contracts.ErrInvalidInput, e.Family)
	}

	if cfg == nil {
		def, err := models.DefaultConfig(e.Family)
		if err != nil {
			return models.Spec{}, err
		}
		cfg = def
	}
	return models.Spec{Name: e.Name, Config: cfg}, nil
}

// entryFields has ModelEntry's fields without its YAML hook
type entryFields ModelEntry

// UnmarshalYAML fills the family block with family defaults before decoding it,
// so a block only needs the fields it overrides
func (e *ModelEntry) UnmarshalYAML(node *yaml.Node) error {
	var out entryFields
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value != "family" {
				continue
			}
			if def, err := models.DefaultConfig(contracts.ModelFamily(node.Content[i+1].Value)); err == nil {
				out = entryFields(entryFor(models.Spec{Config: def}))
			}
		}
	}

	// node.Decode 는 KnownFields 를 상속하지 않으므로 다시 엄격 디코딩
	data, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil {
		return err
	}

	*e = ModelEntry(out)
	return nil
}

// blocks counts the family blocks set on the entry
func (e ModelEntry) blocks() int {
	n := 0
	if e.GradientBoosting != nil {
		n++
	}
	if e.RandomForest != nil {
		n++
	}
	if e.NeuralNetwork != nil {
		n++
	}
	if e.LinearSVM != nil {
		n++
	}
	if e.LogisticRegression != nil {
		n++
	}
	return n
}

// Specs returns the model specs of the profile in order
func (p *Profile) Specs() ([]models.Spec, error) {
	specs := make([]models.Spec, 0, len(p.Models))
	for _, e := range p.Models {
		spec, err := e.Spec()
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Options returns the orchestrator options of the profile
func (p *Profile) Options() (comparison.Options, error) {
	hash, err := Hash(p)
	if err != nil {
		return comparison.Options{}, err
	}
	return comparison.Options{
		ModelTimeout: p.Runtime.ModelTimeout,
		Parallelism:  p.Runtime.Parallelism,
		Backtest:     p.Backtest,
		ProfileHash:  hash,
	}, nil
}
