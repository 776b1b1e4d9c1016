package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/alb/internal/apperr"
)

type errorBody struct {
	Error *apperr.Error `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as a typed JSON error. Errors outside the apperr
// taxonomy are reported as internal errors without their cause.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	e := apperr.ToError(err)
	if e == nil {
		e = apperr.NewInternalError("internal server error", err)
	}

	status := apperr.StatusCode(e)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", slog.String("code", e.Code), slog.String("error", e.Error()))
	}

	writeJSON(w, status, errorBody{Error: e})
}
