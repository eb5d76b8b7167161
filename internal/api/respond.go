package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/pipeline"
	"github.com/unalkalkan/podcaster/internal/storage"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Stage string `json:"stage,omitempty"`
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, ErrorResponse{Error: message}, status)
}

// respondFailure maps an error onto a status code and a message that is
// safe to show to clients
func respondFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: apperrors.PublicMessage(err)}
	if kind, ok := apperrors.KindOf(err); ok {
		resp.Kind = string(kind)
	} else if status == http.StatusInternalServerError {
		resp.Error = "internal error"
	}
	if stage, ok := pipeline.StageOf(err); ok {
		resp.Stage = string(stage)
	}
	if status == http.StatusNotFound {
		resp.Error = "not found"
	}
	respondJSON(w, resp, status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case apperrors.IsCanceled(err):
		return http.StatusGatewayTimeout
	case apperrors.Is(err, apperrors.KindRateLimit):
		return http.StatusTooManyRequests
	case apperrors.Is(err, apperrors.KindUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case apperrors.Is(err, apperrors.KindConfiguration):
		return http.StatusBadRequest
	}
	if _, ok := apperrors.KindOf(err); ok {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
