package contracts

import (
	"encoding/json"
	"fmt"
)

// Grade is a qualitative metric grade; higher is better (FAILING=0 … EXCELLENT=5)
type Grade int

const (
	GradeFailing Grade = iota
	GradePoor
	GradeAverage
	GradeGood
	GradeVeryGood
	GradeExcellent
)

var gradeNames = [...]string{"FAILING", "POOR", "AVERAGE", "GOOD", "VERY_GOOD", "EXCELLENT"}

func (g Grade) String() string {
	if g < GradeFailing || g > GradeExcellent {
		return "UNKNOWN"
	}
	return gradeNames[g]
}

// Score returns the grade normalized to [0,1]
func (g Grade) Score() float64 {
	return float64(g) / float64(GradeExcellent)
}

// MarshalJSON encodes the grade by name
func (g Grade) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}

// UnmarshalJSON decodes a grade name
func (g *Grade) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for i, name := range gradeNames {
		if name == s {
			*g = Grade(i)
			return nil
		}
	}
	return fmt.Errorf("unknown grade %q", s)
}

// RiskLevel orders risk from VERY_LOW (0) to CRITICAL (5); higher is worse
type RiskLevel int

const (
	RiskVeryLow RiskLevel = iota
	RiskLow
	RiskModerate
	RiskHigh
	RiskVeryHigh
	RiskCritical
)

var riskNames = [...]string{"VERY_LOW", "LOW", "MODERATE", "HIGH", "VERY_HIGH", "CRITICAL"}

func (r RiskLevel) String() string {
	if r < RiskVeryLow || r > RiskCritical {
		return "UNKNOWN"
	}
	return riskNames[r]
}

// MarshalJSON encodes the risk level by name
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a risk level name
func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for i, name := range riskNames {
		if name == s {
			*r = RiskLevel(i)
			return nil
		}
	}
	return fmt.Errorf("unknown risk level %q", s)
}

// MetricInterpretation is the verdict for one metric of one model
type MetricInterpretation struct {
	Metric         Metric    `json:"metric"`
	Value          float64   `json:"value"`
	Grade          Grade     `json:"grade"`
	Risk           RiskLevel `json:"risk_level"`
	Interpretation string    `json:"interpretation"`
	Recommendation string    `json:"recommendation"`
}

// ModelAnalysis aggregates all metric interpretations of one model
type ModelAnalysis struct {
	Model           string                 `json:"model"`
	Metrics         []MetricInterpretation `json:"metrics"`
	OverallGrade    Grade                  `json:"overall_grade"`
	OverallRisk     RiskLevel              `json:"overall_risk"`
	IsTradable      bool                   `json:"is_tradable"`
	ConfidenceScore float64                `json:"confidence_score"`
	Score           float64                `json:"score"` // 종합 점수 0~100
	Strengths       []string               `json:"strengths"`
	Weaknesses      []string               `json:"weaknesses"`
	Recommendations []string               `json:"recommendations"`
	Warnings        []string               `json:"warnings"`
}

// Interpretation returns the interpretation of metric m, if it was evaluated
func (a ModelAnalysis) Interpretation(m Metric) (MetricInterpretation, bool) {
	for _, mi := range a.Metrics {
		if mi.Metric == m {
			return mi, true
		}
	}
	return MetricInterpretation{}, false
}
