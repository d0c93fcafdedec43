package contracts

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors of the comparison engine
// ⭐ SSOT: 에러 분류는 여기서만 정의
var (
	ErrInsufficientData    = errors.New("insufficient data")
	ErrModelTrainingFailed = errors.New("model training failed")
	ErrAllModelsFailed     = errors.New("all models failed")
	ErrTimeout             = errors.New("timeout")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrAllSymbolsFailed    = errors.New("all symbols failed")
)

// ErrorKind is the machine readable failure category carried in runs and job statuses
type ErrorKind string

const (
	KindInsufficientData ErrorKind = "insufficient_data"
	KindTrainingFailed   ErrorKind = "training_failed"
	KindAllModelsFailed  ErrorKind = "all_models_failed"
	KindAllSymbolsFailed ErrorKind = "all_symbols_failed"
	KindTimeout          ErrorKind = "timeout"
	KindCancelled        ErrorKind = "cancelled"
	KindInvalidInput     ErrorKind = "invalid_input"
	KindUnknown          ErrorKind = "unknown"
)

// KindOf classifies an error
// Timeout 은 학습 실패의 일종이지만 더 구체적인 분류를 우선함
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrInsufficientData):
		return KindInsufficientData
	case errors.Is(err, ErrAllSymbolsFailed):
		return KindAllSymbolsFailed
	case errors.Is(err, ErrAllModelsFailed):
		return KindAllModelsFailed
	case errors.Is(err, ErrModelTrainingFailed):
		return KindTrainingFailed
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	default:
		return KindUnknown
	}
}

// InsufficientDataError names the symbol and how many usable rows it had
type InsufficientDataError struct {
	Symbol   string
	Rows     int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: %d valid rows (need %d)", e.Symbol, e.Rows, e.Required)
}

// Unwrap makes errors.Is(err, ErrInsufficientData) hold
func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}

// ModelError is a per-model failure; it never aborts a comparison run
type ModelError struct {
	Model string
	Kind  ErrorKind
	Err   error
}

// NewModelError wraps err for model name, classifying timeouts separately
func NewModelError(model string, err error) *ModelError {
	kind := KindTrainingFailed
	if k := KindOf(err); k == KindTimeout || k == KindCancelled {
		kind = k
	}
	return &ModelError{Model: model, Kind: kind, Err: err}
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s: %s: %v", e.Model, e.Kind, e.Err)
}

// Unwrap exposes both the training-failed sentinel and the cause
func (e *ModelError) Unwrap() []error {
	errs := []error{ErrModelTrainingFailed, e.Err}
	if e.Kind == KindTimeout {
		errs = append(errs, ErrTimeout)
	}
	return errs
}

// AllModelsFailedError lists every per-model failure of one symbol
type AllModelsFailedError struct {
	Symbol   string
	Failures []ModelFailure
}

func (e *AllModelsFailedError) Error() string {
	return fmt.Sprintf("all %d models failed for %s", len(e.Failures), e.Symbol)
}

// Unwrap makes errors.Is(err, ErrAllModelsFailed) hold
func (e *AllModelsFailedError) Unwrap() error {
	return ErrAllModelsFailed
}
