package api

import (
	"errors"
	"net/http"

	"commodity-matching/internal/storage"
)

// ErrorCode represents unified API error codes
type ErrorCode string

const (
	ErrorCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	ErrorCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrorCodeConflict        ErrorCode = "CONFLICT"
	ErrorCodeInternalError   ErrorCode = "INTERNAL_ERROR"
)

// MapErrorToHTTP maps storage and validation errors to HTTP status codes
// and error responses
func MapErrorToHTTP(err error) (int, ErrorResponse) {
	switch {
	case err == nil:
		return http.StatusOK, ErrorResponse{}

	case errors.Is(err, storage.ErrRequirementNotFound),
		errors.Is(err, storage.ErrAvailabilityNotFound),
		errors.Is(err, storage.ErrMatchNotFound):
		return http.StatusNotFound, ErrorResponse{
			Code:    string(ErrorCodeNotFound),
			Message: err.Error(),
		}

	case errors.Is(err, storage.ErrMatchExists):
		return http.StatusConflict, ErrorResponse{
			Code:    string(ErrorCodeConflict),
			Message: err.Error(),
		}

	case errors.Is(err, storage.ErrInvalidArgument):
		return http.StatusBadRequest, ErrorResponse{
			Code:    string(ErrorCodeInvalidArgument),
			Message: err.Error(),
		}

	default:
		return http.StatusInternalServerError, ErrorResponse{
			Code:    string(ErrorCodeInternalError),
			Message: err.Error(),
		}
	}
}
