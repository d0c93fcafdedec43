package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/modelcmp/internal/contracts"
	"github.com/wonny/modelcmp/internal/jobs"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string              `json:"error"`
	Kind  contracts.ErrorKind `json:"kind,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondErr maps engine errors to HTTP status codes
func respondErr(w http.ResponseWriter, err error) {
	kind := contracts.KindOf(err)
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, contracts.ErrNotFound):
		status = http.StatusNotFound
		kind = ""
	case errors.Is(err, jobs.ErrQueueFull):
		status = http.StatusServiceUnavailable
	case errors.Is(err, jobs.ErrQueueClosed):
		status = http.StatusServiceUnavailable
	default:
		switch kind {
		case contracts.KindInvalidInput:
			status = http.StatusBadRequest
		case contracts.KindInsufficientData, contracts.KindAllModelsFailed, contracts.KindAllSymbolsFailed:
			status = http.StatusUnprocessableEntity
		case contracts.KindTimeout:
			status = http.StatusGatewayTimeout
		case contracts.KindCancelled:
			status = http.StatusServiceUnavailable
		}
	}

	if kind == contracts.KindUnknown {
		kind = ""
	}
	respondJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}
