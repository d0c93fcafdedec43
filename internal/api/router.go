package api

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/modelcmp/internal/api/handlers"
	"github.com/wonny/modelcmp/internal/telemetry"
	"github.com/wonny/modelcmp/pkg/logger"
	"github.com/wonny/modelcmp/pkg/redis"
)

// Handlers groups every handler the router serves
type Handlers struct {
	Compare *handlers.CompareHandler
	Jobs    *handlers.JobHandler
	Runs    *handlers.RunHandler // nil 이면 이력 API 비활성
}

// RouterOptions holds the cross-cutting pieces of the router
type RouterOptions struct {
	Metrics      *telemetry.Metrics
	RateLimiter  *redis.RateLimiter // nil 이면 제한 없음
	RequestLimit int                // 분당 요청 수 (0 = 무제한)
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, opts RouterOptions, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler()).Methods("GET")
	}

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()

	// Comparison endpoints
	api.HandleFunc("/models", h.Compare.Models).Methods("GET")
	api.HandleFunc("/recommend/{symbol}", h.Compare.Recommend).Methods("GET")

	// 비용이 큰 엔드포인트만 레이트 리밋
	limited := func(h http.HandlerFunc) http.Handler { return h }
	if opts.RateLimiter != nil && opts.RequestLimit > 0 {
		mw := rateLimitMiddleware(opts.RateLimiter, opts.RequestLimit, log)
		limited = func(h http.HandlerFunc) http.Handler { return mw(h) }
	}
	api.Handle("/compare", limited(h.Compare.Compare)).Methods("POST")
	api.Handle("/jobs/compare", limited(h.Jobs.SubmitCompare)).Methods("POST")
	api.Handle("/jobs/batch", limited(h.Jobs.SubmitBatch)).Methods("POST")

	// Job endpoints
	api.HandleFunc("/jobs", h.Jobs.List).Methods("GET")
	api.HandleFunc("/jobs/{id}", h.Jobs.Get).Methods("GET")
	api.HandleFunc("/jobs/{id}", h.Jobs.Cancel).Methods("DELETE")
	api.HandleFunc("/jobs/{id}/stream", h.Jobs.Stream).Methods("GET")

	// Run history
	if h.Runs != nil {
		api.HandleFunc("/runs", h.Runs.List).Methods("GET")
		api.HandleFunc("/runs/{id}", h.Runs.Get).Methods("GET")
		api.HandleFunc("/aggregates/{id}", h.Runs.GetAggregate).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log, opts.Metrics))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "modelcmp-api",
	})
}

// statusRecorder captures the response code for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the wrapped writer to http.ResponseController
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// loggingMiddleware logs HTTP requests and records per-route metrics
func loggingMiddleware(log *logger.Logger, metrics *telemetry.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			// Call next handler
			next.ServeHTTP(rec, r)

			// 경로 변수 대신 템플릿으로 라벨링 (cardinality)
			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			metrics.ObserveHTTP(route, rec.status, time.Since(start))

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// rateLimitMiddleware rejects clients over perMinute requests with 429
func rateLimitMiddleware(limiter *redis.RateLimiter, perMinute int, log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, err := limiter.Allow(r.Context(), redis.APIRateLimit(clientIP(r), perMinute))
			if err != nil {
				// Redis 장애 시 요청은 통과
				log.WithError(err).Warn("Rate limit check failed")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(perMinute))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !allowed {
				w.Header().Set("Retry-After", "60")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "rate limit exceeded",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
