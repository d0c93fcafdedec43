package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/modelcmp/internal/comparison"
	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/internal/models"
	"github.com/wonny/modelcmp/pkg/logger"
)

// Comparer runs a single-symbol comparison synchronously
type Comparer interface {
	Compare(ctx context.Context, req comparison.Request, progress chan<- contracts.ProgressEvent) (*contracts.ComparisonRun, error)
}

// Recommender proposes model families from a symbol's price regime
type Recommender interface {
	Recommend(ctx context.Context, symbol string) (*contracts.Recommendation, error)
}

// CompareHandler handles synchronous comparison endpoints
type CompareHandler struct {
	comparer    Comparer
	recommender Recommender
	defaults    Defaults
	logger      *logger.Logger
}

// NewCompareHandler creates a new compare handler
func NewCompareHandler(comparer Comparer, recommender Recommender, defaults Defaults, log *logger.Logger) *CompareHandler {
	return &CompareHandler{
		comparer:    comparer,
		recommender: recommender,
		defaults:    defaults,
		logger:      log.Component("api.compare"),
	}
}

// ModelInfo describes one configured model
type ModelInfo struct {
	Name   string                 `json:"name"`
	Family contracts.ModelFamily  `json:"family"`
	Params map[string]interface{} `json:"params"`
}

// Compare handles POST /api/v1/compare
// 요청이 끝날 때까지 블록됨; 긴 비교는 /api/v1/jobs/compare 사용
func (h *CompareHandler) Compare(w http.ResponseWriter, r *http.Request) {
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

	run, err := h.comparer.Compare(r.Context(), req, nil)
	if err != nil {
		h.logger.WithError(err).WithField("symbol", req.Symbol).Warn("Comparison failed")
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// Models handles GET /api/v1/models
func (h *CompareHandler) Models(w http.ResponseWriter, r *http.Request) {
	specs := h.defaults.Factory.Specs()
	out := make([]ModelInfo, 0, len(specs))
	for _, s := range specs {
		out = append(out, modelInfo(s))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"models": out,
		"count":  len(out),
		"metric": h.defaults.Metric,
	})
}

// Recommend handles GET /api/v1/recommend/{symbol}
func (h *CompareHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	rec, err := h.recommender.Recommend(r.Context(), symbol)
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

func modelInfo(s models.Spec) ModelInfo {
	return ModelInfo{
		Name:   s.Name,
		Family: s.Config.Family(),
		Params: s.Config.Params(),
	}
}
