// Package errors defines the structured API error envelope and the mapping
// from domain errors to HTTP responses.
package errors

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"marketsignal/internal/datasource"
	"marketsignal/internal/granger"
)

// APIError represents a structured API error response.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError carries per-field validation detail.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new APIError with the given parameters.
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details.
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// ErrValidation creates a validation error with field details.
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", ValidationError{
		Field:   field,
		Message: message,
	})
}

// InvalidRequestWithError creates an invalid request error with details.
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// FromDomain maps analysis and data-source errors to API errors. Parameter
// faults are the caller's (400); analytically unusable data is 422; missing
// price data is 404; anything unrecognized is a 500.
func FromDomain(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var invalidParam *granger.InvalidParameterError
	if errors.As(err, &invalidParam) {
		return NewWithDetails(http.StatusBadRequest, "INVALID_PARAMETER",
			"Invalid analysis parameter", invalidParam.Error())
	}

	var insufficient *granger.InsufficientDataError
	if errors.As(err, &insufficient) {
		return NewWithDetails(http.StatusUnprocessableEntity, "INSUFFICIENT_DATA",
			"Too few aligned observations for the requested lag depth",
			map[string]int{
				"required":  insufficient.Required,
				"available": insufficient.Available,
			})
	}

	var degenerate *granger.DegenerateSeriesError
	if errors.As(err, &degenerate) {
		return NewWithDetails(http.StatusUnprocessableEntity, "DEGENERATE_SERIES",
			"Input series cannot support a meaningful regression", degenerate.Error())
	}

	var singular *granger.SingularDesignError
	if errors.As(err, &singular) {
		return NewWithDetails(http.StatusUnprocessableEntity, "SINGULAR_DESIGN",
			"Regression design is numerically rank-deficient", singular.Error())
	}

	if errors.Is(err, datasource.ErrNoData) {
		return NewWithDetails(http.StatusNotFound, "NO_PRICE_DATA",
			"No price data for requested ticker and range", err.Error())
	}

	return New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
}
