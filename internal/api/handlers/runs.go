package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wonny/modelcmp/internal/artifacts"
	"github.com/wonny/modelcmp/internal/contracts"
)

// RunReader reads persisted comparison results
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*contracts.ComparisonRun, error)
	ListRuns(ctx context.Context, symbol string, limit int) ([]artifacts.RunSummary, error)
	GetAggregate(ctx context.Context, runID string) (*contracts.AggregateComparison, error)
}

// RunHandler serves the run history
type RunHandler struct {
	runs RunReader
}

// NewRunHandler creates a new run handler
func NewRunHandler(runs RunReader) *RunHandler {
	return &RunHandler{runs: runs}
}

// Get handles GET /api/v1/runs/{id}
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// List handles GET /api/v1/runs?symbol=&limit=
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(r.Context(), symbol, limit)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetAggregate handles GET /api/v1/aggregates/{id}
func (h *RunHandler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	agg, err := h.runs.GetAggregate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agg)
}
