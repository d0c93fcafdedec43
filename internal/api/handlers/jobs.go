package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wonny/modelcmp/internal/aggregation"
	"github.com/wonny/modelcmp/internal/comparison"
	"github.com/wonny/modelcmp/internal/jobs"
	"github.com/wonny/modelcmp/pkg/logger"
)

// JobQueue is the asynchronous comparison queue
type JobQueue interface {
	SubmitCompare(req comparison.Request) (string, error)
	SubmitBatch(req aggregation.BatchRequest) (string, error)
	Status(ctx context.Context, id string) (jobs.Status, error)
	List() []jobs.Status
	Cancel(id string) error
	Subscribe(id string) (<-chan jobs.Status, func(), error)
}

// JobHandler handles asynchronous job endpoints
type JobHandler struct {
	queue    JobQueue
	defaults Defaults
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(queue JobQueue, defaults Defaults, log *logger.Logger) *JobHandler {
	return &JobHandler{
		queue:    queue,
		defaults: defaults,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // 내부 대시보드 전용
			},
		},
		logger: log.Component("api.jobs"),
	}
}

// SubmittedResponse is returned by job submission endpoints
type SubmittedResponse struct {
	JobID  string     `json:"job_id"`
	State  jobs.State `json:"state"`
	Status string     `json:"status_url"`
	Stream string     `json:"stream_url"`
}

func submitted(id string) SubmittedResponse {
	return SubmittedResponse{
		JobID:  id,
		State:  jobs.StatePending,
		Status: "/api/v1/jobs/" + id,
		Stream: "/api/v1/jobs/" + id + "/stream",
	}
}

// SubmitCompare handles POST /api/v1/jobs/compare
func (h *JobHandler) SubmitCompare(w http.ResponseWriter, r *http.Request) {
	var body CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req, err := h.defaults.compareRequest(body)
	if err != nil {
		respondErr(w, err)
		return
	}

	id, err := h.queue.SubmitCompare(req)
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, submitted(id))
}

// SubmitBatch handles POST /api/v1/jobs/batch
func (h *JobHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var body BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req, err := h.defaults.batchRequest(body)
	if err != nil {
		respondErr(w, err)
		return
	}

	id, err := h.queue.SubmitBatch(req)
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, submitted(id))
}

// List handles GET /api/v1/jobs
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	all := h.queue.List()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  all,
		"count": len(all),
	})
}

// Get handles GET /api/v1/jobs/{id}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	status, err := h.queue.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// Cancel handles DELETE /api/v1/jobs/{id}
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.queue.Cancel(id); err != nil {
		respondErr(w, err)
		return
	}

	status, err := h.queue.Status(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, status)
}
