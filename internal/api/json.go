package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/netmount/internal/apperr"
	"github.com/starford/netmount/internal/i18n"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	Code  string `json:"code,omitempty" example:"parameter_required"`
	Field string `json:"field,omitempty" example:"host"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps err onto a status code and a message localized for r.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	tag := i18n.ResolveTag(r)
	body := func(code, field string) errResponse {
		return errResponse{Error: i18n.Translate(tag, code, field), Code: code, Field: field}
	}

	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, body(ve.Key, ve.Field))
	case errors.Is(err, apperr.ErrUnknownKind):
		writeJSON(w, http.StatusBadRequest, body("unknown_kind", "kind"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, body("not_found", ""))
	case errors.Is(err, apperr.ErrBackendRejected):
		slog.Warn("backend rejected request", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, body("backend_rejected", ""))
	case errors.Is(err, apperr.ErrBackendCall):
		slog.Error("backend unavailable", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, body("backend_unavailable", ""))
	default:
		slog.Error("request failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, body("internal_error", ""))
	}
}

// decodeJSON reads a JSON request body of at most 1 MiB into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}
