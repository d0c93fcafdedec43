package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/modelcmp/internal/aggregation"
	"github.com/wonny/modelcmp/internal/api/handlers"
	"github.com/wonny/modelcmp/internal/artifacts"
	"github.com/wonny/modelcmp/internal/comparison"
	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/internal/dataset"
	"github.com/wonny/modelcmp/internal/jobs"
	"github.com/wonny/modelcmp/internal/models"
	"github.com/wonny/modelcmp/internal/telemetry"
	"github.com/wonny/modelcmp/pkg/config"
	"github.com/wonny/modelcmp/pkg/logger"
	"github.com/wonny/modelcmp/pkg/redis"
)

// ===== Stubs =====

type stubComparer struct {
	mu   sync.Mutex
	last comparison.Request
	err  error
}

func (s *stubComparer) Compare(ctx context.Context, req comparison.Request, progress chan<- contracts.ProgressEvent) (*contracts.ComparisonRun, error) {
	s.mu.Lock()
	s.last = req
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &contracts.ComparisonRun{RunID: "run-1", Symbol: req.Symbol, BestModel: req.Specs[0].Name, BestMetric: req.BestMetric}, nil
}

type stubRecommender struct{}

func (stubRecommender) Recommend(ctx context.Context, symbol string) (*contracts.Recommendation, error) {
	if symbol == "short" {
		return nil, &contracts.InsufficientDataError{Symbol: symbol, Rows: 5, Required: 20}
	}
	return aggregation.Classify(symbol, 0.15, 0.10), nil
}

type stubQueue struct {
	mu        sync.Mutex
	compares  []comparison.Request
	batches   []aggregation.BatchRequest
	cancelled []string
	updates   chan jobs.Status
	full      bool
}

func (q *stubQueue) SubmitCompare(req comparison.Request) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return "", jobs.ErrQueueFull
	}
	q.compares = append(q.compares, req)
	return fmt.Sprintf("job-%d", len(q.compares)), nil
}

func (q *stubQueue) SubmitBatch(req aggregation.BatchRequest) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.batches = append(q.batches, req)
	return "batch-1", nil
}

func (q *stubQueue) Status(ctx context.Context, id string) (jobs.Status, error) {
	if id == "missing" {
		return jobs.Status{}, fmt.Errorf("%w: job %s", contracts.ErrNotFound, id)
	}
	return jobs.Status{ID: id, Kind: jobs.KindCompare, State: jobs.StateProgress}, nil
}

func (q *stubQueue) List() []jobs.Status {
	return []jobs.Status{{ID: "job-1", State: jobs.StatePending}}
}

func (q *stubQueue) Cancel(id string) error {
	if id == "missing" {
		return fmt.Errorf("%w: job %s", contracts.ErrNotFound, id)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelled = append(q.cancelled, id)
	return nil
}

func (q *stubQueue) Subscribe(id string) (<-chan jobs.Status, func(), error) {
	if id == "missing" {
		return nil, nil, fmt.Errorf("%w: job %s", contracts.ErrNotFound, id)
	}
	return q.updates, func() {}, nil
}

type stubRuns struct{}

func (stubRuns) GetRun(ctx context.Context, runID string) (*contracts.ComparisonRun, error) {
	if runID != "run-1" {
		return nil, fmt.Errorf("%w: run %s", contracts.ErrNotFound, runID)
	}
	return &contracts.ComparisonRun{RunID: runID, Symbol: "005930"}, nil
}

func (stubRuns) ListRuns(ctx context.Context, symbol string, limit int) ([]artifacts.RunSummary, error) {
	return []artifacts.RunSummary{{RunID: "run-1", Symbol: symbol}}, nil
}

func (stubRuns) GetAggregate(ctx context.Context, runID string) (*contracts.AggregateComparison, error) {
	return nil, fmt.Errorf("%w: aggregate %s", contracts.ErrNotFound, runID)
}

// ===== Fixture =====

type fixture struct {
	router   http.Handler
	comparer *stubComparer
	queue    *stubQueue
	metrics  *telemetry.Metrics
}

func newFixture(t *testing.T, opts RouterOptions) *fixture {
	t.Helper()

	factory, err := models.NewFactory(models.DefaultSpecs()...)
	require.NoError(t, err)

	now := time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
	defaults := handlers.Defaults{
		Factory:     factory,
		Dataset:     dataset.DefaultParams(),
		Metric:      contracts.MetricSharpe,
		HistoryDays: 365,
		Now:         func() time.Time { return now },
	}

	f := &fixture{
		comparer: &stubComparer{},
		queue:    &stubQueue{updates: make(chan jobs.Status, 4)},
		metrics:  opts.Metrics,
	}
	log := logger.Nop()
	f.router = NewRouter(Handlers{
		Compare: handlers.NewCompareHandler(f.comparer, stubRecommender{}, defaults, log),
		Jobs:    handlers.NewJobHandler(f.queue, defaults, log),
		Runs:    handlers.NewRunHandler(stubRuns{}),
	}, opts, log)
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// ===== Tests =====

func TestHealth(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestCompare_AppliesDefaults(t *testing.T) {
	f := newFixture(t, RouterOptions{})

	rec := f.do(http.MethodPost, "/api/v1/compare", `{"symbol":"005930"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req := f.comparer.last
	assert.Equal(t, "005930", req.Symbol)
	assert.Len(t, req.Specs, len(models.DefaultSpecs()))
	assert.Equal(t, contracts.MetricSharpe, req.BestMetric)
	assert.Equal(t, "2024-06-28", req.End.Format("2006-01-02"))
	assert.Equal(t, "2023-06-29", req.Start.Format("2006-01-02"))
	require.NotNil(t, req.Dataset)
}

func TestCompare_ExplicitFields(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	name := models.DefaultSpecs()[1].Name

	rec := f.do(http.MethodPost, "/api/v1/compare",
		`{"symbol":"000660","start":"2022-01-03","end":"2023-12-28","models":["`+name+`"],"metric":"f1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var run contracts.ComparisonRun
	decode(t, rec, &run)
	assert.Equal(t, name, run.BestModel)
	assert.Equal(t, contracts.MetricF1, run.BestMetric)
	assert.Equal(t, "2022-01-03", f.comparer.last.Start.Format("2006-01-02"))
}

func TestCompare_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		code int
		kind contracts.ErrorKind
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, ""},
		{"missing symbol", `{"symbol":" "}`, nil, http.StatusBadRequest, contracts.KindInvalidInput},
		{"bad date", `{"symbol":"A","end":"28/06/2024"}`, nil, http.StatusBadRequest, contracts.KindInvalidInput},
		{"unknown model", `{"symbol":"A","models":["nope"]}`, nil, http.StatusBadRequest, contracts.KindInvalidInput},
		{"unknown metric", `{"symbol":"A","metric":"alpha"}`, nil, http.StatusBadRequest, contracts.KindInvalidInput},
		{"insufficient", `{"symbol":"A"}`, &contracts.InsufficientDataError{Symbol: "A", Rows: 10, Required: 60}, http.StatusUnprocessableEntity, contracts.KindInsufficientData},
		{"all models failed", `{"symbol":"A"}`, &contracts.AllModelsFailedError{}, http.StatusUnprocessableEntity, contracts.KindAllModelsFailed},
		{"timeout", `{"symbol":"A"}`, contracts.ErrTimeout, http.StatusGatewayTimeout, contracts.KindTimeout},
		{"unknown", `{"symbol":"A"}`, fmt.Errorf("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, RouterOptions{})
			f.comparer.err = tt.err

			rec := f.do(http.MethodPost, "/api/v1/compare", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())

			var body handlers.ErrorResponse
			decode(t, rec, &body)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.kind, body.Kind)
		})
	}
}

func TestModels(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	rec := f.do(http.MethodGet, "/api/v1/models", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Models []handlers.ModelInfo `json:"models"`
		Count  int                  `json:"count"`
	}
	decode(t, rec, &body)
	assert.Equal(t, len(models.DefaultSpecs()), body.Count)
	for _, m := range body.Models {
		assert.NotEmpty(t, m.Family)
		assert.NotEmpty(t, m.Params)
	}
}

func TestRecommend(t *testing.T) {
	f := newFixture(t, RouterOptions{})

	rec := f.do(http.MethodGet, "/api/v1/recommend/005930", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body contracts.Recommendation
	decode(t, rec, &body)
	assert.Equal(t, "005930", body.Symbol)
	assert.NotEmpty(t, body.Primary)

	rec = f.do(http.MethodGet, "/api/v1/recommend/short", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestJobs_Submit(t *testing.T) {
	f := newFixture(t, RouterOptions{})

	rec := f.do(http.MethodPost, "/api/v1/jobs/compare", `{"symbol":"005930"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var sub handlers.SubmittedResponse
	decode(t, rec, &sub)
	assert.Equal(t, "job-1", sub.JobID)
	assert.Equal(t, jobs.StatePending, sub.State)
	assert.Equal(t, "/api/v1/jobs/job-1/stream", sub.Stream)

	rec = f.do(http.MethodPost, "/api/v1/jobs/batch", `{"symbols":["005930","000660"],"metric":"win_rate"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, f.queue.batches, 1)
	assert.Equal(t, []string{"005930", "000660"}, f.queue.batches[0].Symbols)
	assert.Equal(t, contracts.MetricWinRate, f.queue.batches[0].BestMetric)

	rec = f.do(http.MethodPost, "/api/v1/jobs/batch", `{"symbols":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.queue.full = true
	rec = f.do(http.MethodPost, "/api/v1/jobs/compare", `{"symbol":"005930"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestJobs_GetListCancel(t *testing.T) {
	f := newFixture(t, RouterOptions{})

	rec := f.do(http.MethodGet, "/api/v1/jobs/job-7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st jobs.Status
	decode(t, rec, &st)
	assert.Equal(t, "job-7", st.ID)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/jobs/missing", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/jobs", "").Code)

	rec = f.do(http.MethodDelete, "/api/v1/jobs/job-7", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"job-7"}, f.queue.cancelled)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/v1/jobs/missing", "").Code)
}

func TestJobs_Stream(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	f.queue.updates <- jobs.Status{ID: "job-1", State: jobs.StateProgress, Percent: 50}
	f.queue.updates <- jobs.Status{ID: "job-1", State: jobs.StateSuccess, Percent: 100}
	close(f.queue.updates)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/jobs/job-1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var got []jobs.Status
	for {
		var st jobs.Status
		if err := conn.ReadJSON(&st); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err)
			break
		}
		got = append(got, st)
	}
	require.Len(t, got, 2)
	assert.Equal(t, jobs.StateProgress, got[0].State)
	assert.Equal(t, jobs.StateSuccess, got[1].State)
}

func TestJobs_StreamUnknownJob(t *testing.T) {
	f := newFixture(t, RouterOptions{})
	rec := f.do(http.MethodGet, "/api/v1/jobs/missing/stream", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRuns(t *testing.T) {
	f := newFixture(t, RouterOptions{})

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/runs/run-1", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/runs/other", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/aggregates/agg-1", "").Code)

	rec := f.do(http.MethodGet, "/api/v1/runs?symbol=005930&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"symbol":"005930"`)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/runs?limit=0", "").Code)
}

func TestMetricsEndpointRecordsRouteTemplates(t *testing.T) {
	f := newFixture(t, RouterOptions{Metrics: telemetry.New()})

	f.do(http.MethodGet, "/api/v1/jobs/job-3", "")
	rec := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/v1/jobs/{id}"`)
	assert.NotContains(t, rec.Body.String(), `route="/api/v1/jobs/job-3"`)
}

func TestRateLimitHeaders(t *testing.T) {
	client, err := redis.New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	f := newFixture(t, RouterOptions{RateLimiter: redis.NewRateLimiter(client, "test"), RequestLimit: 30})

	rec := f.do(http.MethodPost, "/api/v1/compare", `{"symbol":"005930"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("X-RateLimit-Limit"))

	// 가벼운 조회 엔드포인트는 제한 대상이 아님
	rec = f.do(http.MethodGet, "/api/v1/models", "")
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:51234"
	assert.Equal(t, "10.0.0.5", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}
