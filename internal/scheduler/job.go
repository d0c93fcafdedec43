package scheduler

import (
	"context"
	"time"
)

// historyLimit is the number of runs kept per job
const historyLimit = 100

// Job is a cron-driven comparison task
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string

	// Schedule returns the cron expression (seconds field first, e.g. "0 0 19 * * 1-5")
	Schedule() string

	// Run executes one attempt and reports which symbols it covered.
	// The report is kept even when err != nil (partial batches).
	Run(ctx context.Context) (Report, error)
}

// Report is the symbol-level outcome of one job attempt
type Report struct {
	RunID         string   `json:"run_id,omitempty"` // 배치 비교 aggregate run id
	Symbols       int      `json:"symbols"`
	Succeeded     int      `json:"succeeded"`
	FailedSymbols []string `json:"failed_symbols,omitempty"`
	Cancelled     bool     `json:"cancelled,omitempty"`
}

// JobResult is one scheduled execution, including retries
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Report    Report        `json:"report"`
}

// JobHistory keeps the latest results of one job
type JobHistory struct {
	Results []JobResult
}

func (h *JobHistory) add(result JobResult) {
	h.Results = append(h.Results, result)
	if len(h.Results) > historyLimit {
		h.Results = h.Results[len(h.Results)-historyLimit:]
	}
}

// Latest returns the most recent result
func (h *JobHistory) Latest() (JobResult, bool) {
	if len(h.Results) == 0 {
		return JobResult{}, false
	}
	return h.Results[len(h.Results)-1], true
}

// Failures returns the number of failed runs
func (h *JobHistory) Failures() int {
	n := 0
	for _, r := range h.Results {
		if !r.Success {
			n++
		}
	}
	return n
}

// SymbolSuccessRate is succeeded / attempted symbols over all kept runs (0 without symbols)
func (h *JobHistory) SymbolSuccessRate() float64 {
	attempted, succeeded := 0, 0
	for _, r := range h.Results {
		attempted += r.Report.Symbols
		succeeded += r.Report.Succeeded
	}
	if attempted == 0 {
		return 0
	}
	return float64(succeeded) / float64(attempted)
}

// LastRunID returns the newest non-empty aggregate run id
func (h *JobHistory) LastRunID() string {
	for i := len(h.Results) - 1; i >= 0; i-- {
		if id := h.Results[i].Report.RunID; id != "" {
			return id
		}
	}
	return ""
}
