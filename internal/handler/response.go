package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError so the frontend
// always gets the same shapes:
//
//	writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
//	writeError(w, err)
//
// ERROR FORMAT:
//
//	{"error": "validation_error", "message": "missing required fields"}
//
// The frontend shows "message" to the user, so it is always the route's own
// client-facing text and never an internal error string.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/recruiting-portal/internal/apperror"
)

// MsgTooLarge answers any request body over the configured limit.
const MsgTooLarge = "file too large, please upload a smaller profile picture/resume"

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable kind, e.g. "not_found"
	Message string `json:"message"` // shown to the user
}

// messageResponse is the common {"message": "..."} success body.
type messageResponse struct {
	Message string `json:"message"`
}

// okResponse is the {"ok": true} success body.
type okResponse struct {
	OK bool `json:"ok"`
}

// writeJSON sends data as JSON with status. Headers must be set before
// WriteHeader; anything set afterwards is ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a service error to an HTTP status and sends it.
//
// ERROR MAPPING:
//
//	apperror.ErrValidation   → 400 validation_error
//	apperror.ErrUnauthorized → 401 unauthorized
//	apperror.ErrForbidden    → 403 forbidden
//	apperror.ErrNotFound     → 404 not_found
//	apperror.ErrConflict     → 409 conflict
//	apperror.ErrTooLarge     → 413 too_large
//	apperror.ErrUpstream     → 500 upstream_error (route's fixed message)
//	anything else            → 500 internal_error (generic message)
//
// errors.Is walks the whole chain, so a service may wrap an AppError with
// fmt.Errorf("...: %w") and the mapping still holds.
func writeError(w http.ResponseWriter, err error) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "too_large", Message: MsgTooLarge})
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrTooLarge):
			status = http.StatusRequestEntityTooLarge
			errorType = "too_large"
		case errors.Is(err, apperror.ErrUpstream):
			errorType = "upstream_error"
			slog.Error("upstream failure", slog.String("error", err.Error()))
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// Unknown error. The raw text may hold table names or AWS request ids, so
	// it is logged and never sent to the client.
	slog.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "internal error",
	})
}
