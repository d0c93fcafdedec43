package contracts

import "time"

// Stage 정의 (SSOT)
// 진행 이벤트, 로그, 작업 상태 메시지에서 이 상수를 사용해야 함
//
// 비교 흐름:
//   DATASET → TRAINING (×N) → SELECTION → COMPLETED

// Stage represents a step of a comparison run
type Stage string

const (
	// StageDataset 피처 조회 및 데이터셋 생성
	StageDataset Stage = "DATASET"

	// StageTraining 모델 학습 시작
	StageTraining Stage = "TRAINING"

	// StageModelDone 모델 1개 학습/백테스트/평가 완료
	StageModelDone Stage = "MODEL_DONE"

	// StageModelFailed 모델 1개 실패 (실행은 계속)
	StageModelFailed Stage = "MODEL_FAILED"

	// StageSelection 베스트 모델 선정 및 리포트
	StageSelection Stage = "SELECTION"

	// StageSymbolDone 배치 비교에서 종목 1개 완료
	StageSymbolDone Stage = "SYMBOL_DONE"

	// StageSymbolFailed 배치 비교에서 종목 1개 실패
	StageSymbolFailed Stage = "SYMBOL_FAILED"

	// StageCompleted 전체 완료
	StageCompleted Stage = "COMPLETED"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// Description returns a human readable description
func (s Stage) Description() string {
	switch s {
	case StageDataset:
		return "Building dataset"
	case StageTraining:
		return "Training models"
	case StageModelDone:
		return "Model evaluated"
	case StageModelFailed:
		return "Model failed"
	case StageSelection:
		return "Selecting best model"
	case StageSymbolDone:
		return "Symbol completed"
	case StageSymbolFailed:
		return "Symbol failed"
	case StageCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further events follow this stage for the run
func (s Stage) Terminal() bool {
	return s == StageCompleted
}

// ProgressEvent is emitted in order by a running comparison
type ProgressEvent struct {
	Stage     Stage     `json:"stage"`
	Symbol    string    `json:"symbol,omitempty"`
	Model     string    `json:"model,omitempty"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Percent returns completion in [0,100]
func (e ProgressEvent) Percent() float64 {
	if e.Total <= 0 {
		return 0
	}
	p := float64(e.Completed) / float64(e.Total) * 100
	if p > 100 {
		return 100
	}
	return p
}
