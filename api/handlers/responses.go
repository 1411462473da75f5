package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"relato/core/apperrors"
	"relato/core/utils"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError translates the service error taxonomy to HTTP. Internal
// causes are logged, never echoed.
func writeServiceError(w http.ResponseWriter, err error, logger *utils.Logger) {
	switch {
	case errors.Is(err, apperrors.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, apperrors.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrBadRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		if logger != nil {
			logger.Errorf("request failed: %v", err)
		}
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}
