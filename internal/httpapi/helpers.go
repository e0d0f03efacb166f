package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"gatehouse.org/internal/auth"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func writeValidation(w http.ResponseWriter, r *http.Request, errs auth.ValidationErrors) {
	payload := map[string]any{
		"error":  "validation failed",
		"fields": errs,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, http.StatusUnprocessableEntity, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleAuthError maps domain errors onto HTTP codes. Validation errors
// keep their field structure; everything unexpected collapses into 500.
func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs auth.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeValidation(w, r, verrs)
	case errors.Is(err, auth.ErrUnauthorized):
		unauthorized(w, r, "unauthorized")
	case errors.Is(err, auth.ErrForbidden):
		forbidden(w, r, "forbidden")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusBadRequest, "invalid or expired token")
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, "resource conflict")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
