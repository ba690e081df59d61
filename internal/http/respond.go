package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/courseloop/api/internal/domain"
	"github.com/courseloop/api/internal/service/auth"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeValidationError reports every invalid field in one response.
func writeValidationError(w http.ResponseWriter, vErr *domain.ValidationError) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"message": "Validation Failed",
		"errors":  vErr.Fields,
	})
}

// respondServiceError maps service error kinds onto HTTP statuses.
// forbiddenMsg customizes the 403 body for routes with a documented
// authorization message; pass "" for the generic one.
func respondServiceError(w http.ResponseWriter, err error, forbiddenMsg string) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeValidationError(w, vErr)
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Access Denied")
	case errors.Is(err, domain.ErrForbidden):
		if forbiddenMsg == "" {
			forbiddenMsg = "Forbidden"
		}
		writeError(w, http.StatusForbidden, forbiddenMsg)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not Found")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "Conflict")
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
