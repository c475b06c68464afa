package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"freightpay/internal/repository"
	"freightpay/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrNoActiveAttempt):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidPhoneNumber),
		errors.Is(err, service.ErrInvalidUserType),
		errors.Is(err, service.ErrInvalidPurpose):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrVerificationRunning):
		return http.StatusConflict

	// Upstream gateway refusals
	case errors.Is(err, service.ErrGatewayRejected),
		errors.Is(err, service.ErrMissingPaymentURL):
		return http.StatusBadGateway

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
