package helpers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"eventrsvp/internal/domain"
)

// Error codes for API error responses. Use these with WriteJSONError.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeForbidden      = "forbidden"
	ErrCodeNotFound       = "not_found"
	ErrCodeCheckInNotOpen = "checkin_not_open"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeInternalError  = "internal_error"

	ErrCodeDeadlinePassed  = "rsvp_deadline_passed"
	ErrCodeEventFull       = "event_full"
	ErrCodeAlreadyReserved = "already_reserved"
)

// APIError is the error object in the standardized API response envelope.
// swagger:model APIError
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIResponse is the standardized envelope for all API responses.
// On success: Data is set, Error is nil. On error: Data is nil, Error is set.
// swagger:model APIResponse
type APIResponse struct {
	Data  any       `json:"data"`
	Error *APIError `json:"error"`
}

// WriteJSONSuccess sets Content-Type to application/json, writes statusCode, and
// encodes an APIResponse with the given data and error set to nil.
func WriteJSONSuccess(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse{Data: data, Error: nil})
}

// WriteJSONError sets Content-Type to application/json, writes statusCode, and
// encodes an APIResponse with data nil and the given error code and message.
func WriteJSONError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Data:  nil,
		Error: &APIError{Code: code, Message: message},
	})
}

// WriteServiceError maps a service error onto the envelope. Unclassified errors are
// logged and reported as 500.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		WriteJSONError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		WriteJSONError(w, http.StatusForbidden, ErrCodeForbidden, "forbidden")
	case errors.Is(err, domain.ErrEventNotFound):
		WriteJSONError(w, http.StatusNotFound, ErrCodeNotFound, "event not found")
	case errors.Is(err, domain.ErrAttendeeNotFound):
		WriteJSONError(w, http.StatusNotFound, ErrCodeNotFound, "attendee not found")
	case errors.Is(err, domain.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, ErrCodeNotFound, "not found")
	case errors.Is(err, domain.ErrCheckInNotOpen):
		WriteJSONError(w, http.StatusConflict, ErrCodeCheckInNotOpen, err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable), errors.Is(err, context.DeadlineExceeded):
		logger.WarnContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		WriteJSONError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "service temporarily unavailable, retry later")
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		WriteJSONError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
	}
}

// WriteRejection reports an admission rejection with its reason code.
func WriteRejection(w http.ResponseWriter, outcome domain.AdmitOutcome) {
	switch outcome {
	case domain.RejectedDeadlinePassed:
		WriteJSONError(w, http.StatusBadRequest, ErrCodeDeadlinePassed, "the RSVP deadline for this event has passed")
	case domain.RejectedCapacityFull:
		WriteJSONError(w, http.StatusConflict, ErrCodeEventFull, "this event is full")
	case domain.RejectedDuplicate:
		WriteJSONError(w, http.StatusConflict, ErrCodeAlreadyReserved, "you already have a reservation for this event")
	default:
		WriteJSONError(w, http.StatusInternalServerError, ErrCodeInternalError, "unexpected admission outcome")
	}
}
