package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/wonny/trustrank/internal/brain"
	"github.com/wonny/trustrank/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor maps scoring errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, brain.ErrRecomputeDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, contracts.ErrCompanyNotFound):
		return http.StatusNotFound
	case errors.Is(err, contracts.ErrMissingCompanyID), errors.Is(err, contracts.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, contracts.ErrVersionConflict), errors.Is(err, contracts.ErrLockHeld):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
