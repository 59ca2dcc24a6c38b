package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"orderdesk/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeDomainError maps domain errors to HTTP statuses and stable error codes.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *core.TrackingConflictError
	switch {
	case errors.As(err, &conflict):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(errorResponse{
			Error:     conflict.Error(),
			Code:      "TRACKING_CONFLICT",
			RequestID: requestIDFromContext(r.Context()),
			Details:   conflict,
		})
	case errors.Is(err, core.ErrVersionConflict):
		writeError(w, r, err.Error(), "VERSION_CONFLICT", http.StatusConflict)
	case errors.Is(err, core.ErrOrderNotEditable):
		writeError(w, r, err.Error(), "ORDER_LOCKED", http.StatusConflict)
	case errors.Is(err, core.ErrTrackedOrdersInBatch):
		writeError(w, r, err.Error(), "BATCH_HAS_TRACKING", http.StatusConflict)
	case errors.Is(err, core.ErrNoEligibleOrders):
		writeError(w, r, err.Error(), "NO_ELIGIBLE_ORDERS", http.StatusUnprocessableEntity)
	case errors.Is(err, core.ErrReasonRequired):
		writeError(w, r, err.Error(), "REASON_REQUIRED", http.StatusBadRequest)
	case errors.Is(err, core.ErrInvalidCredentials):
		writeError(w, r, err.Error(), "UNAUTHORIZED", http.StatusUnauthorized)
	case strings.Contains(err.Error(), "not found"):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	default:
		writeError(w, r, err.Error(), "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
