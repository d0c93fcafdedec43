package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/modelcmp/pkg/logger"
)

type countingJob struct {
	name     string
	failures int32 // 처음 N 번 실패
	calls    atomic.Int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return "@every 1h" }

func (j *countingJob) Run(ctx context.Context) (Report, error) {
	n := j.calls.Add(1)
	if n <= j.failures {
		return Report{Symbols: 2, Succeeded: 1, FailedSymbols: []string{"B"}}, errors.New("transient")
	}
	return Report{RunID: "agg-" + j.name, Symbols: 2, Succeeded: 2}, nil
}

func TestRunJobSyncRetries(t *testing.T) {
	s := New(logger.Nop()).WithRetry(2, time.Millisecond)
	job := &countingJob{name: "flaky", failures: 2}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunJobSync("flaky")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int32(3), job.calls.Load())

	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "agg-flaky", res.Report.RunID)

	stats := s.GetJobStats()["flaky"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, "agg-flaky", stats.LastRunID)
	assert.InDelta(t, 1.0, stats.SymbolSuccessRate, 1e-12)
	require.NotNil(t, stats.LastRun)
	require.NotNil(t, stats.LastReport)
	assert.Empty(t, stats.LastError)
}

func TestRunJobSyncGivesUp(t *testing.T) {
	s := New(logger.Nop()).WithRetry(1, time.Millisecond)
	job := &countingJob{name: "broken", failures: 10}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunJobSync("broken")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "transient", res.Error)
	assert.Equal(t, int32(2), job.calls.Load())

	// 마지막 시도의 부분 결과가 남음
	assert.Equal(t, []string{"B"}, res.Report.FailedSymbols)

	history, err := s.GetJobHistory("broken")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.FailureCount)
	assert.Equal(t, "transient", stats.LastError)
	assert.Empty(t, stats.LastRunID)
	assert.InDelta(t, 0.5, stats.SymbolSuccessRate, 1e-12)
}

func TestAddJobValidation(t *testing.T) {
	s := New(logger.Nop())
	require.NoError(t, s.AddJob(&countingJob{name: "b"}))
	require.NoError(t, s.AddJob(&countingJob{name: "a"}))
	assert.Error(t, s.AddJob(&countingJob{name: "a"}))
	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())

	_, err := s.RunJobSync("missing")
	assert.Error(t, err)
	assert.Error(t, s.RunJob("missing"))
}

func TestStopWaitsForRunningJob(t *testing.T) {
	s := New(logger.Nop())
	started := make(chan struct{})
	job := &blockingJob{started: started}
	require.NoError(t, s.AddJob(job))
	s.Start()

	require.NoError(t, s.RunJob("blocking"))
	<-started
	s.Stop()
	assert.True(t, job.sawCancel.Load())
}

type blockingJob struct {
	started   chan struct{}
	sawCancel atomic.Bool
}

func (j *blockingJob) Name() string     { return "blocking" }
func (j *blockingJob) Schedule() string { return "@every 1h" }

func (j *blockingJob) Run(ctx context.Context) (Report, error) {
	close(j.started)
	<-ctx.Done()
	j.sawCancel.Store(true)
	return Report{Cancelled: true}, ctx.Err()
}

func TestJobHistoryKeepsLast100(t *testing.T) {
	h := &JobHistory{}
	_, ok := h.Latest()
	assert.False(t, ok)
	assert.Equal(t, 0.0, h.SymbolSuccessRate())

	for i := 0; i < 120; i++ {
		r := JobResult{JobName: "x", Success: i%2 == 0, Report: Report{Symbols: 4, Succeeded: 3}}
		if r.Success {
			r.Report.RunID = fmt.Sprintf("agg-%d", i)
		}
		h.add(r)
	}
	assert.Len(t, h.Results, historyLimit)
	assert.Equal(t, 50, h.Failures())
	assert.InDelta(t, 0.75, h.SymbolSuccessRate(), 1e-12)

	// 마지막 실행(119)은 실패 → 직전 성공의 run id
	last, ok := h.Latest()
	require.True(t, ok)
	assert.False(t, last.Success)
	assert.Equal(t, "agg-118", h.LastRunID())
}
