package jobs

import (
	"errors"
	"time"

	"github.com/wonny/modelcmp/internal/contracts"
)

// State 정의 (SSOT)
// 상태 전이는 오케스트레이터 진행 이벤트로만 일어남
//
//   PENDING → PROGRESS → SUCCESS | FAILURE
//   PENDING → FAILURE (실행 전 취소)

// State is the lifecycle state of a job
type State string

const (
	StatePending  State = "PENDING"
	StateProgress State = "PROGRESS"
	StateSuccess  State = "SUCCESS"
	StateFailure  State = "FAILURE"
)

// Terminal reports whether the job will not change again
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// Kind is what a job runs
type Kind string

const (
	KindCompare Kind = "compare"
	KindBatch   Kind = "batch"
)

var (
	// ErrQueueFull is returned when the submission buffer is full
	ErrQueueFull = errors.New("job queue full")
	// ErrQueueClosed is returned after Stop
	ErrQueueClosed = errors.New("job queue closed")
)

// Status is a snapshot of a job
type Status struct {
	ID         string                         `json:"id"`
	Kind       Kind                           `json:"kind"`
	State      State                          `json:"state"`
	Stage      contracts.Stage                `json:"stage,omitempty"`
	Percent    float64                        `json:"percent"`
	Message    string                         `json:"message,omitempty"`
	Symbols    []string                       `json:"symbols"`
	CreatedAt  time.Time                      `json:"created_at"`
	StartedAt  time.Time                      `json:"started_at,omitempty"`
	FinishedAt time.Time                      `json:"finished_at,omitempty"`
	Run        *contracts.ComparisonRun       `json:"run,omitempty"`
	Aggregate  *contracts.AggregateComparison `json:"aggregate,omitempty"`
	Error      string                         `json:"error,omitempty"`
	ErrorKind  contracts.ErrorKind            `json:"error_kind,omitempty"`
}

// Event is published when a job reaches a terminal state
type Event struct {
	JobID      string              `json:"job_id"`
	Kind       Kind                `json:"kind"`
	State      State               `json:"state"`
	Symbols    []string            `json:"symbols"`
	RunID      string              `json:"run_id,omitempty"`
	BestModel  string              `json:"best_model,omitempty"`
	Succeeded  int                 `json:"succeeded,omitempty"`
	ErrorKind  contracts.ErrorKind `json:"error_kind,omitempty"`
	DurationMs int64               `json:"duration_ms"`
	Timestamp  time.Time           `json:"timestamp"`
}

// eventFor summarizes a terminal status
func eventFor(s Status) Event {
	ev := Event{
		JobID:     s.ID,
		Kind:      s.Kind,
		State:     s.State,
		Symbols:   s.Symbols,
		ErrorKind: s.ErrorKind,
		Timestamp: s.FinishedAt,
	}
	if !s.StartedAt.IsZero() {
		ev.DurationMs = s.FinishedAt.Sub(s.StartedAt).Milliseconds()
	}
	if s.Run != nil {
		ev.RunID = s.Run.RunID
		ev.BestModel = s.Run.BestModel
	}
	if s.Aggregate != nil {
		ev.RunID = s.Aggregate.RunID
		ev.Succeeded = s.Aggregate.SymbolsSucceeded
	}
	return ev
}
