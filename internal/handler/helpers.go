// Package handler exposes the famly HTTP API. Handlers are thin: they
// decode, call a store or service, map domain errors to status codes,
// and broadcast sync messages.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"famly/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors to HTTP status codes. Anything
// unrecognized is a 500 with a generic body; the caller logs the
// detail.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		writeErrorMsg(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrPermissionDenied):
		writeErrorMsg(w, http.StatusForbidden, err.Error())
	case errors.Is(err, apperr.ErrMalformedInterchange):
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrExternalService):
		writeErrorMsg(w, http.StatusBadGateway, err.Error())
	default:
		writeErrorMsg(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func parseFlexibleTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
