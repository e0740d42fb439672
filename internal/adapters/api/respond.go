package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"inputbid-service/internal/domain/shared"

	"github.com/rs/zerolog"
)

type errorResponse struct {
	Error      string `json:"error"`
	ReasonKind string `json:"reason_kind"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// statusFor maps a domain error kind to its HTTP status
func statusFor(err error) int {
	switch shared.KindOf(err) {
	case shared.ErrValidation:
		return http.StatusBadRequest
	case shared.ErrNotAuthorized:
		return http.StatusForbidden
	case shared.ErrNotFound:
		return http.StatusNotFound
	case shared.ErrInvalidState, shared.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("Request failed")
		if !errors.Is(err, shared.ErrIntegrity) {
			message = "internal error"
		}
	}
	writeJSON(w, status, errorResponse{Error: message, ReasonKind: shared.KindName(err)})
}
