package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/modelcmp/internal/aggregation"
	"github.com/wonny/modelcmp/internal/comparison"
	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/internal/telemetry"
	"github.com/wonny/modelcmp/pkg/logger"
	"github.com/wonny/modelcmp/pkg/redis"
)

// Batcher runs multi-symbol comparisons (*aggregation.Aggregator)
type Batcher interface {
	CompareMultiple(ctx context.Context, req aggregation.BatchRequest, progress chan<- contracts.ProgressEvent) (*contracts.AggregateComparison, error)
}

// RunStore persists finished runs (*artifacts.RunRepository)
type RunStore interface {
	SaveRun(ctx context.Context, run *contracts.ComparisonRun) error
	SaveAggregate(ctx context.Context, agg *contracts.AggregateComparison) error
}

// Deps are the collaborators of a Queue; only Comparer and Batcher are required
type Deps struct {
	Comparer  aggregation.Comparer
	Batcher   Batcher
	Store     RunStore
	Publisher Publisher
	Cache     *redis.Cache
	Metrics   *telemetry.Metrics
}

// Config sizes the worker pool
type Config struct {
	Workers int // 동시 실행 작업 수
	Buffer  int // 대기열 크기
}

// DefaultConfig returns 2 workers and a 64 job buffer
func DefaultConfig() Config {
	return Config{Workers: 2, Buffer: 64}
}

type job struct {
	status  Status
	compare *comparison.Request
	batch   *aggregation.BatchRequest
	cancel  context.CancelFunc
	subs    []chan Status
	version uint64 // q.mu 보호, 상태 변경마다 증가

	mirrorMu sync.Mutex
	mirrored uint64 // Redis 에 기록된 최신 version
}

// snapshot is a status captured under q.mu, mirrored to Redis after unlocking
type snapshot struct {
	job     *job
	status  Status
	version uint64
}

// Queue runs comparison jobs on a bounded worker pool
// ⭐ SSOT: 비동기 비교 작업은 이 큐를 통해서만 실행
type Queue struct {
	deps   Deps
	cfg    Config
	logger *logger.Logger

	tasks chan *job
	wg    sync.WaitGroup

	mu      sync.RWMutex
	jobs    map[string]*job
	started bool
	closed  bool
}

// NewQueue creates a queue; call Start to run workers
func NewQueue(deps Deps, cfg Config, log *logger.Logger) *Queue {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Buffer < 1 {
		cfg.Buffer = 1
	}
	return &Queue{
		deps:   deps,
		cfg:    cfg,
		logger: log.Component("jobs"),
		tasks:  make(chan *job, cfg.Buffer),
		jobs:   make(map[string]*job),
	}
}

// Start launches the workers; jobs are cancelled when ctx is done
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}

	q.logger.WithField("workers", q.cfg.Workers).Info("Job queue started")
}

// Stop rejects new jobs and waits for queued and running jobs to finish
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
	if q.deps.Publisher != nil {
		if err := q.deps.Publisher.Close(); err != nil {
			q.logger.WithError(err).Warn("Failed to close job publisher")
		}
	}
	q.logger.Info("Job queue stopped")
}

// SubmitCompare queues a single-symbol comparison
func (q *Queue) SubmitCompare(req comparison.Request) (string, error) {
	if req.Symbol == "" {
		return "", fmt.Errorf("%w: symbol is required", contracts.ErrInvalidInput)
	}
	return q.submit(&job{
		status:  Status{Kind: KindCompare, Symbols: []string{req.Symbol}},
		compare: &req,
	})
}

// SubmitBatch queues a multi-symbol comparison
func (q *Queue) SubmitBatch(req aggregation.BatchRequest) (string, error) {
	if len(req.Symbols) == 0 {
		return "", fmt.Errorf("%w: symbols are required", contracts.ErrInvalidInput)
	}
	return q.submit(&job{
		status: Status{Kind: KindBatch, Symbols: append([]string(nil), req.Symbols...)},
		batch:  &req,
	})
}

func (q *Queue) submit(j *job) (string, error) {
	j.status.ID = uuid.New().String()
	j.status.State = StatePending
	j.status.CreatedAt = time.Now()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrQueueClosed
	}

	select {
	case q.tasks <- j:
	default:
		q.mu.Unlock()
		return "", ErrQueueFull
	}
	q.jobs[j.status.ID] = j
	snap := q.snapshotLocked(j)
	q.mu.Unlock()
	q.mirror(snap)

	q.logger.WithFields(map[string]interface{}{
		"job_id":  j.status.ID,
		"kind":    j.status.Kind,
		"symbols": len(j.status.Symbols),
	}).Info("Job submitted")

	return j.status.ID, nil
}

// Status returns the current snapshot of a job
func (q *Queue) Status(ctx context.Context, id string) (Status, error) {
	q.mu.RLock()
	j, ok := q.jobs[id]
	var s Status
	if ok {
		s = j.status
	}
	q.mu.RUnlock()
	if ok {
		return s, nil
	}

	// 다른 인스턴스가 실행한 작업은 Redis 미러에서 조회
	if q.deps.Cache != nil {
		found, err := q.deps.Cache.Get(ctx, redis.JobStatusKey(id), &s)
		if err == nil && found {
			return s, nil
		}
	}
	return Status{}, fmt.Errorf("%w: job %s", contracts.ErrNotFound, id)
}

// List returns snapshots of every job this instance knows
func (q *Queue) List() []Status {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Status, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, j.status)
	}
	return out
}

// Cancel stops a job. A pending job fails immediately; a running job fails
// once the orchestrator observes the cancellation. Cancelling a finished job is a no-op.
func (q *Queue) Cancel(id string) error {
	var snap snapshot
	defer func() { q.mirror(snap) }() // q.mu 해제 후 실행
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[id]
	if !ok {
		return fmt.Errorf("%w: job %s", contracts.ErrNotFound, id)
	}

	switch {
	case j.status.State.Terminal():
		return nil
	case j.cancel != nil:
		j.cancel()
	default:
		snap = q.finishLocked(j, context.Canceled)
	}

	q.logger.WithField("job_id", id).Info("Job cancel requested")
	return nil
}

// Subscribe returns a channel receiving every status change of a job, starting
// with the current one. The channel is closed after the terminal status.
// Call the returned func to unsubscribe early.
func (q *Queue) Subscribe(id string) (<-chan Status, func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: job %s", contracts.ErrNotFound, id)
	}

	ch := make(chan Status, 32)
	ch <- j.status
	if j.status.State.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}
	j.subs = append(j.subs, ch)

	unsubscribe := func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		for i, s := range j.subs {
			if s == ch {
				j.subs = append(j.subs[:i], j.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe, nil
}

// ===== Worker =====

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			q.drain(ctx.Err())
			return
		case j, ok := <-q.tasks:
			if !ok {
				return
			}
			q.run(ctx, j)
		}
	}
}

// drain fails every job still waiting in the buffer
func (q *Queue) drain(err error) {
	for {
		q.mu.Lock()
		select {
		case j, ok := <-q.tasks:
			if !ok {
				q.mu.Unlock()
				return
			}
			var snap snapshot
			if !j.status.State.Terminal() {
				snap = q.finishLocked(j, err)
			}
			q.mu.Unlock()
			q.mirror(snap)
		default:
			q.mu.Unlock()
			return
		}
	}
}

func (q *Queue) run(ctx context.Context, j *job) {
	q.mu.Lock()
	if j.status.State.Terminal() {
		// 실행 전 취소됨
		q.mu.Unlock()
		return
	}
	jctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.status.StartedAt = time.Now()
	q.mu.Unlock()
	defer cancel()

	q.deps.Metrics.JobStarted()
	log := q.logger.WithFields(map[string]interface{}{
		"job_id": j.status.ID,
		"kind":   j.status.Kind,
	})
	log.Info("Job started")

	progress := make(chan contracts.ProgressEvent, 16)
	done := make(chan struct{})
	go func() {
		for ev := range progress {
			q.onProgress(j, ev)
		}
		close(done)
	}()

	var (
		run *contracts.ComparisonRun
		agg *contracts.AggregateComparison
		err error
	)
	switch j.status.Kind {
	case KindCompare:
		run, err = q.deps.Comparer.Compare(jctx, *j.compare, progress)
	case KindBatch:
		agg, err = q.deps.Batcher.CompareMultiple(jctx, *j.batch, progress)
	}
	close(progress)
	<-done

	q.persist(ctx, run, agg, log)

	q.mu.Lock()
	j.status.Run = run
	j.status.Aggregate = agg
	snap := q.finishLocked(j, err)
	final := j.status
	q.mu.Unlock()
	q.mirror(snap)

	if q.deps.Publisher != nil {
		pctx, pcancel := context.WithTimeout(context.Background(), 10*time.Second)
		if perr := q.deps.Publisher.Publish(pctx, eventFor(final)); perr != nil {
			log.WithError(perr).Warn("Failed to publish job event")
		}
		pcancel()
	}

	log.WithFields(map[string]interface{}{
		"state":       final.State,
		"duration_ms": final.FinishedAt.Sub(final.StartedAt).Milliseconds(),
	}).Info("Job finished")
}

// persist stores results; a cancelled batch still stores its partial aggregate
func (q *Queue) persist(ctx context.Context, run *contracts.ComparisonRun, agg *contracts.AggregateComparison, log *logger.Logger) {
	if q.deps.Store == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if run != nil {
		if err := q.deps.Store.SaveRun(sctx, run); err != nil {
			log.WithError(err).Error("Failed to save run")
		}
	}
	if agg != nil {
		if err := q.deps.Store.SaveAggregate(sctx, agg); err != nil {
			log.WithError(err).Error("Failed to save aggregate")
		}
	}
}

func (q *Queue) onProgress(j *job, ev contracts.ProgressEvent) {
	q.mu.Lock()
	if j.status.State.Terminal() {
		q.mu.Unlock()
		return
	}
	j.status.State = StateProgress
	j.status.Stage = ev.Stage
	j.status.Percent = ev.Percent()
	j.status.Message = ev.Message
	snap := q.broadcastLocked(j)
	q.mu.Unlock()

	q.mirror(snap)
}

// finishLocked moves j to its terminal state; q.mu must be held
func (q *Queue) finishLocked(j *job, err error) snapshot {
	j.status.FinishedAt = time.Now()
	if err != nil {
		j.status.State = StateFailure
		j.status.Error = err.Error()
		j.status.ErrorKind = contracts.KindOf(err)
	} else {
		j.status.State = StateSuccess
		j.status.Percent = 100
	}

	if !j.status.StartedAt.IsZero() {
		q.deps.Metrics.JobFinished(string(j.status.State))
	}
	snap := q.broadcastLocked(j)
	for _, ch := range j.subs {
		close(ch)
	}
	j.subs = nil
	return snap
}

// broadcastLocked sends the status to subscribers; slow subscribers miss updates
func (q *Queue) broadcastLocked(j *job) snapshot {
	for _, ch := range j.subs {
		select {
		case ch <- j.status:
		default:
		}
	}
	return q.snapshotLocked(j)
}

// snapshotLocked versions the current status for mirroring; q.mu must be held
func (q *Queue) snapshotLocked(j *job) snapshot {
	j.version++
	return snapshot{job: j, status: j.status, version: j.version}
}

// mirror copies a snapshot to Redis without its (large) results. It must be
// called without q.mu; older snapshots than the last written one are dropped.
func (q *Queue) mirror(snap snapshot) {
	if q.deps.Cache == nil || snap.job == nil {
		return
	}

	j := snap.job
	j.mirrorMu.Lock()
	defer j.mirrorMu.Unlock()
	if snap.version <= j.mirrored {
		return
	}

	s := snap.status
	s.Run = nil
	s.Aggregate = nil
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := q.deps.Cache.Set(ctx, redis.JobStatusKey(s.ID), s, redis.TTLShort); err != nil {
		q.logger.WithError(err).Debug("Failed to mirror job status")
		return
	}
	j.mirrored = snap.version
}
