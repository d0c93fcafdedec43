package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/modelcmp/internal/api"
	"github.com/wonny/modelcmp/internal/api/handlers"
	"github.com/wonny/modelcmp/internal/jobs"
	"github.com/wonny/modelcmp/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버와 비교 작업 큐를 시작합니다.

Endpoints:
  GET    /health                    - Health check
  GET    /metrics                   - Prometheus metrics
  GET    /api/v1/models             - 프로필 모델 목록
  POST   /api/v1/compare            - 단일 종목 비교 (동기)
  POST   /api/v1/jobs/compare       - 단일 종목 비교 작업 제출
  POST   /api/v1/jobs/batch         - 배치 비교 작업 제출
  GET    /api/v1/jobs/{id}          - 작업 상태 조회
  DELETE /api/v1/jobs/{id}          - 작업 취소
  GET    /api/v1/jobs/{id}/stream   - 작업 진행 WebSocket
  GET    /api/v1/recommend/{symbol} - 모델 패밀리 추천
  GET    /api/v1/runs/{id}          - 저장된 비교 결과

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Model Comparison API Server ===")

	// 1. Wire engine
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	log := a.log
	log.WithFields(map[string]interface{}{
		"port":    a.cfg.Port,
		"env":     a.cfg.Env,
		"profile": a.profile.Meta.ProfileID,
	}).Info("Initializing API server")

	// 2. Job queue
	deps := jobs.Deps{
		Comparer: a.orchestrator,
		Batcher:  a.aggregator,
		Metrics:  a.metrics,
	}
	if a.runs != nil {
		deps.Store = a.runs
	}
	if a.redis.Enabled() {
		deps.Cache = a.cache
	}
	if a.cfg.Kafka.Enabled {
		deps.Publisher = jobs.NewKafkaPublisher(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic)
		log.WithField("topic", a.cfg.Kafka.Topic).Info("Publishing job events to Kafka")
	}

	queueCfg := jobs.DefaultConfig()
	queueCfg.Workers = a.cfg.Comparison.JobWorkers
	queue := jobs.NewQueue(deps, queueCfg, log)

	ctx, stop := signalContext()
	defer stop()
	queue.Start(ctx)

	// 3. Handlers
	defaults := handlers.Defaults{
		Factory:     a.factory,
		Dataset:     a.profile.Dataset,
		Metric:      a.profile.Selection.Metric,
		HistoryDays: a.cfg.Comparison.HistoryDays,
	}
	h := api.Handlers{
		Compare: handlers.NewCompareHandler(a.orchestrator, a.recommender, defaults, log),
		Jobs:    handlers.NewJobHandler(queue, defaults, log),
	}
	if a.runs != nil {
		h.Runs = handlers.NewRunHandler(a.runs)
	}

	// 4. Router
	opts := api.RouterOptions{
		Metrics:      a.metrics,
		RequestLimit: a.cfg.Comparison.APIRateLimit,
	}
	if a.redis.Enabled() {
		opts.RateLimiter = redis.NewRateLimiter(a.redis, "modelcmp")
	}
	router := api.NewRouter(h, opts, log)

	// 5. Create server
	server := api.New(a.cfg, log, router)

	// 6. Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	select {
	case err := <-errCh:
		queue.Stop()
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	queue.Stop()

	log.Info("Server stopped")
	return nil
}
