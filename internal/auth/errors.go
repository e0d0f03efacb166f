package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")
	ErrInvalidToken = errors.New("auth: invalid or expired token")
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: resource conflict")
	ErrInvalidInput = errors.New("auth: invalid input")
)

// FieldError carries the messages collected for a single input field.
type FieldError struct {
	Field    string   `json:"field"`
	Messages []string `json:"messages"`
}

// ValidationErrors is the structured form of malformed input, surfaced
// to clients as a 422 with one entry per failing field.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(v))
	for _, f := range v {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, strings.Join(f.Messages, "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Add appends a message for a field, merging with an existing entry.
func (v ValidationErrors) Add(field, message string) ValidationErrors {
	for i := range v {
		if v[i].Field == field {
			v[i].Messages = append(v[i].Messages, message)
			return v
		}
	}
	return append(v, FieldError{Field: field, Messages: []string{message}})
}

// OrNil returns the collected errors, or nil when no field failed.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
