package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/modelcmp/internal/aggregation"
	"github.com/wonny/modelcmp/internal/comparison"
	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/pkg/logger"
	"github.com/wonny/modelcmp/pkg/redis"
)

// ===== Stubs =====

type stubComparer struct {
	release chan struct{} // nil 이면 즉시 완료
	err     error
}

func (s *stubComparer) Compare(ctx context.Context, req comparison.Request, progress chan<- contracts.ProgressEvent) (*contracts.ComparisonRun, error) {
	progress <- contracts.ProgressEvent{Stage: contracts.StageDataset, Symbol: req.Symbol, Total: 2}
	progress <- contracts.ProgressEvent{Stage: contracts.StageModelDone, Symbol: req.Symbol, Completed: 1, Total: 2}

	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}

	progress <- contracts.ProgressEvent{Stage: contracts.StageCompleted, Symbol: req.Symbol, Completed: 2, Total: 2}
	return &contracts.ComparisonRun{RunID: "run-" + req.Symbol, Symbol: req.Symbol, BestModel: "gb"}, nil
}

type stubBatcher struct{}

func (stubBatcher) CompareMultiple(ctx context.Context, req aggregation.BatchRequest, progress chan<- contracts.ProgressEvent) (*contracts.AggregateComparison, error) {
	progress <- contracts.ProgressEvent{Stage: contracts.StageCompleted, Completed: len(req.Symbols), Total: len(req.Symbols)}
	return &contracts.AggregateComparison{RunID: "agg", SymbolsAttempted: len(req.Symbols), SymbolsSucceeded: len(req.Symbols)}, nil
}

type memStore struct {
	mu   sync.Mutex
	runs []string
	aggs []string
}

func (m *memStore) SaveRun(ctx context.Context, run *contracts.ComparisonRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run.RunID)
	return nil
}

func (m *memStore) SaveAggregate(ctx context.Context, agg *contracts.AggregateComparison) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggs = append(m.aggs, agg.RunID)
	return nil
}

type memPublisher struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (p *memPublisher) Publish(ctx context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *memPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// waitTerminal collects statuses until the subscription closes
func waitTerminal(t *testing.T, ch <-chan Status) []Status {
	t.Helper()
	var out []Status
	timeout := time.After(5 * time.Second)
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, s)
		case <-timeout:
			t.Fatal("job did not finish")
			return out
		}
	}
}

func newQueue(deps Deps, cfg Config) *Queue {
	if deps.Batcher == nil {
		deps.Batcher = stubBatcher{}
	}
	return NewQueue(deps, cfg, logger.Nop())
}

// ===== Tests =====

func TestCompareJobLifecycle(t *testing.T) {
	release := make(chan struct{})
	store := &memStore{}
	pub := &memPublisher{}
	q := newQueue(Deps{Comparer: &stubComparer{release: release}, Store: store, Publisher: pub}, DefaultConfig())

	id, err := q.SubmitCompare(comparison.Request{Symbol: "005930"})
	require.NoError(t, err)

	s, err := q.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatePending, s.State)

	ch, _, err := q.Subscribe(id)
	require.NoError(t, err)

	q.Start(context.Background())
	close(release)
	statuses := waitTerminal(t, ch)

	require.NotEmpty(t, statuses)
	assert.Equal(t, StatePending, statuses[0].State)
	last := statuses[len(statuses)-1]
	assert.Equal(t, StateSuccess, last.State)
	assert.Equal(t, 100.0, last.Percent)
	require.NotNil(t, last.Run)
	assert.Equal(t, "gb", last.Run.BestModel)

	// PROGRESS 는 PENDING 이후, SUCCESS 이전에만
	for _, st := range statuses[1 : len(statuses)-1] {
		assert.Equal(t, StateProgress, st.State)
	}

	q.Stop()
	assert.Equal(t, []string{"run-005930"}, store.runs)
	require.Len(t, pub.events, 1)
	assert.Equal(t, id, pub.events[0].JobID)
	assert.Equal(t, StateSuccess, pub.events[0].State)
	assert.Equal(t, "run-005930", pub.events[0].RunID)
	assert.True(t, pub.closed)
}

func TestCompareJobFailure(t *testing.T) {
	q := newQueue(Deps{Comparer: &stubComparer{err: &contracts.InsufficientDataError{Symbol: "X", Rows: 5, Required: 100}}}, DefaultConfig())
	q.Start(context.Background())
	defer q.Stop()

	id, err := q.SubmitCompare(comparison.Request{Symbol: "X"})
	require.NoError(t, err)
	ch, _, err := q.Subscribe(id)
	require.NoError(t, err)

	statuses := waitTerminal(t, ch)
	last := statuses[len(statuses)-1]
	assert.Equal(t, StateFailure, last.State)
	assert.Equal(t, contracts.KindInsufficientData, last.ErrorKind)
	assert.Nil(t, last.Run)
}

func TestCancelRunningJob(t *testing.T) {
	q := newQueue(Deps{Comparer: &stubComparer{release: make(chan struct{})}}, DefaultConfig())
	q.Start(context.Background())
	defer q.Stop()

	id, err := q.SubmitCompare(comparison.Request{Symbol: "A"})
	require.NoError(t, err)
	ch, _, err := q.Subscribe(id)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, _ := q.Status(context.Background(), id)
		return s.State == StateProgress
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, q.Cancel(id))
	statuses := waitTerminal(t, ch)
	last := statuses[len(statuses)-1]
	assert.Equal(t, StateFailure, last.State)
	assert.Equal(t, contracts.KindCancelled, last.ErrorKind)

	// 완료된 작업 취소는 무시
	assert.NoError(t, q.Cancel(id))
}

func TestCancelPendingJob(t *testing.T) {
	q := newQueue(Deps{Comparer: &stubComparer{}}, DefaultConfig())

	id, err := q.SubmitCompare(comparison.Request{Symbol: "A"})
	require.NoError(t, err)
	require.NoError(t, q.Cancel(id))

	s, err := q.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StateFailure, s.State)
	assert.Equal(t, contracts.KindCancelled, s.ErrorKind)

	q.Start(context.Background())
	q.Stop()
	s, _ = q.Status(context.Background(), id)
	assert.Equal(t, StateFailure, s.State)
	assert.Nil(t, s.Run)
}

func TestBatchJob(t *testing.T) {
	store := &memStore{}
	q := newQueue(Deps{Comparer: &stubComparer{}, Store: store}, DefaultConfig())
	q.Start(context.Background())

	id, err := q.SubmitBatch(aggregation.BatchRequest{Symbols: []string{"A", "B"}})
	require.NoError(t, err)
	ch, _, err := q.Subscribe(id)
	require.NoError(t, err)

	statuses := waitTerminal(t, ch)
	last := statuses[len(statuses)-1]
	assert.Equal(t, StateSuccess, last.State)
	require.NotNil(t, last.Aggregate)
	assert.Equal(t, 2, last.Aggregate.SymbolsSucceeded)

	q.Stop()
	assert.Equal(t, []string{"agg"}, store.aggs)
}

func TestSubmitValidation(t *testing.T) {
	q := newQueue(Deps{Comparer: &stubComparer{}}, Config{Workers: 1, Buffer: 1})

	_, err := q.SubmitCompare(comparison.Request{})
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)
	_, err = q.SubmitBatch(aggregation.BatchRequest{})
	assert.ErrorIs(t, err, contracts.ErrInvalidInput)

	_, err = q.SubmitCompare(comparison.Request{Symbol: "A"})
	require.NoError(t, err)
	_, err = q.SubmitCompare(comparison.Request{Symbol: "B"})
	assert.ErrorIs(t, err, ErrQueueFull)

	_, err = q.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, contracts.ErrNotFound)
	assert.ErrorIs(t, q.Cancel("missing"), contracts.ErrNotFound)
	_, _, err = q.Subscribe("missing")
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	q.Stop()
	_, err = q.SubmitCompare(comparison.Request{Symbol: "C"})
	assert.True(t, errors.Is(err, ErrQueueClosed))
}

func TestStatusFallsBackToRedisMirror(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := redis.NewCache(redis.NewFromClient(db), "modelcmp")
	q := newQueue(Deps{Comparer: &stubComparer{}, Cache: cache}, DefaultConfig())

	remote := Status{ID: "other", Kind: KindCompare, State: StateSuccess, Symbols: []string{"A"}}
	payload, err := json.Marshal(remote)
	require.NoError(t, err)
	mock.ExpectGet("modelcmp:cache:" + redis.JobStatusKey("other")).SetVal(string(payload))

	got, err := q.Status(context.Background(), "other")
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, got.State)
	assert.Equal(t, []string{"A"}, got.Symbols)
}

// stalledRedis accepts connections and never answers
func stalledRedis(t *testing.T) (addr string, accepted <-chan struct{}) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ch := make(chan struct{}, 16)
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return ln.Addr().String(), ch
}

func TestSlowMirrorDoesNotBlockQueue(t *testing.T) {
	addr, accepted := stalledRedis(t)
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		MaxRetries:   -1,
		DialTimeout:  time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	t.Cleanup(func() { rdb.Close() })
	cache := redis.NewCache(redis.NewFromClient(rdb), "modelcmp")

	// 워커 없이 제출만: 제출 시 Redis 미러 쓰기가 멈춘 상태
	q := newQueue(Deps{Comparer: &stubComparer{}, Cache: cache}, DefaultConfig())

	type submitted struct {
		id  string
		err error
	}
	done := make(chan submitted, 1)
	go func() {
		id, err := q.SubmitCompare(comparison.Request{Symbol: "A"})
		done <- submitted{id, err}
	}()

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("mirror never reached redis")
	}

	begin := time.Now()
	list := q.List()
	require.Len(t, list, 1)
	_, err := q.Status(context.Background(), list[0].ID)
	require.NoError(t, err)
	assert.Less(t, time.Since(begin), 200*time.Millisecond, "queue lock held during redis write")

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, list[0].ID, res.id)

	// 취소도 미러 지연과 무관하게 즉시 상태 반영
	go func() { _ = q.Cancel(res.id) }()
	require.Eventually(t, func() bool {
		s, err := q.Status(context.Background(), res.id)
		return err == nil && s.State == StateFailure
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventFor(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	ev := eventFor(Status{
		ID:         "j",
		Kind:       KindBatch,
		State:      StateSuccess,
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Aggregate:  &contracts.AggregateComparison{RunID: "agg", SymbolsSucceeded: 3},
	})
	assert.Equal(t, int64(1500), ev.DurationMs)
	assert.Equal(t, "agg", ev.RunID)
	assert.Equal(t, 3, ev.Succeeded)
}
