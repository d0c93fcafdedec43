package compareconfig

import (
	"fmt"
	"runtime"
	"time"

	"github.com/wonny/modelcmp/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap makes errors.Is(err, contracts.ErrInvalidInput) hold
func (e ValidationError) Unwrap() error {
	return contracts.ErrInvalidInput
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
func Validate(p *Profile) error {
	// === Meta ===
	if p.Meta.ProfileID == "" {
		return ValidationError{"meta.profile_id", "required"}
	}

	// === Dataset / Backtest ===
	if err := p.Dataset.Validate(); err != nil {
		return ValidationError{"dataset", err.Error()}
	}
	if err := p.Backtest.Validate(); err != nil {
		return ValidationError{"backtest", err.Error()}
	}

	// === Selection ===
	if _, err := contracts.ParseMetric(string(p.Selection.Metric)); err != nil {
		return ValidationError{"selection.metric", fmt.Sprintf("unknown metric %q", p.Selection.Metric)}
	}

	// === Runtime ===
	if p.Runtime.ModelTimeout <= 0 {
		return ValidationError{"runtime.model_timeout", "must be > 0"}
	}
	if p.Runtime.Parallelism < 1 {
		return ValidationError{"runtime.parallelism", "must be >= 1"}
	}
	if p.Runtime.SymbolParallelism < 1 {
		return ValidationError{"runtime.symbol_parallelism", "must be >= 1"}
	}

	// === Models ===
	if len(p.Models) == 0 {
		return ValidationError{"models", "must not be empty"}
	}
	seen := make(map[string]bool, len(p.Models))
	for i, e := range p.Models {
		field := fmt.Sprintf("models[%d]", i)
		if e.Name == "" {
			return ValidationError{field + ".name", "required"}
		}
		if seen[e.Name] {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate name %q", e.Name)}
		}
		seen[e.Name] = true

		if e.blocks() > 1 {
			return ValidationError{field, "must set at most one family block"}
		}
		spec, err := e.Spec()
		if err != nil {
			return ValidationError{field + ".family", err.Error()}
		}
		if e.blocks() == 1 && spec.Config.Family() != e.Family {
			return ValidationError{field, fmt.Sprintf("family block does not match family %q", e.Family)}
		}
		if err := spec.Validate(); err != nil {
			return ValidationError{field, err.Error()}
		}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(p *Profile) []Warning {
	var warnings []Warning

	if len(p.Models) == 1 {
		warnings = append(warnings, Warning{
			Code:    "SINGLE_MODEL",
			Message: "모델 1개: 비교 대상 없음",
		})
	}

	if p.Backtest.StopLoss == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_STOP_LOSS",
			Message: "stop_loss = 0: 손절 비활성",
		})
	}

	if p.Runtime.Parallelism*p.Runtime.SymbolParallelism > runtime.NumCPU() {
		warnings = append(warnings, Warning{
			Code:    "OVERSUBSCRIBED",
			Message: fmt.Sprintf("parallelism × symbol_parallelism > CPU 수(%d): 학습 시간 증가", runtime.NumCPU()),
		})
	}

	if p.Runtime.ModelTimeout < 10*time.Second {
		warnings = append(warnings, Warning{
			Code:    "SHORT_TIMEOUT",
			Message: "model_timeout < 10s: 대형 모델 타임아웃 가능",
		})
	}

	return warnings
}
