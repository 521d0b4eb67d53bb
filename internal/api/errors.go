package api

import (
	"errors"
	"net/http"

	"doctext/internal/staging"
	"doctext/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		return http.StatusNotFound

	case errors.Is(err, staging.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge

	case errors.Is(err, staging.ErrEmptyFile):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, staging.ErrFileTooLarge):
		return "Uploaded file exceeds the size limit"

	case errors.Is(err, staging.ErrEmptyFile):
		return "Uploaded file is empty"

	default:
		return "An unexpected error occurred"
	}
}
