package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feral-file/ff-webhook-engine/internal/api/rest/dto"
	"github.com/feral-file/ff-webhook-engine/internal/domain"
	"github.com/feral-file/ff-webhook-engine/internal/logger"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Client errors (4xx)
	errCodeBadRequest       ErrorCode = "bad_request"
	errCodeNotFound         ErrorCode = "not_found"
	errCodeValidationFailed ErrorCode = "validation_failed"
	errCodeConflict         ErrorCode = "conflict"
	errCodeForbidden        ErrorCode = "forbidden"

	// Server errors (5xx)
	errCodeInternalError ErrorCode = "internal_error"
)

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, statusCode int, code ErrorCode, message string, details ...string) {
	c.JSON(statusCode, dto.NewErrorResponse(string(code), message, details...))
}

// respondBadRequest sends a 400 Bad Request response
func respondBadRequest(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusBadRequest, errCodeBadRequest, message, details...)
}

// respondNotFound sends a 404 Not Found response
func respondNotFound(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusNotFound, errCodeNotFound, message, details...)
}

// respondForbidden sends a 403 Forbidden response
func respondForbidden(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusForbidden, errCodeForbidden, message, details...)
}

// respondValidationError sends a 400 Bad Request with validation error
func respondValidationError(c *gin.Context, details string) {
	respondWithError(c, http.StatusBadRequest, errCodeValidationFailed, "Validation failed", details)
}

// respondInternalError sends a 500 Internal Server Error response and logs the error
func respondInternalError(c *gin.Context, err error, message string, fields ...zap.Field) {
	logger.ErrorCtx(c.Request.Context(), err, fields...)
	respondWithError(c, http.StatusInternalServerError, errCodeInternalError, message)
}

// respondDomainError maps a domain error to its HTTP status
func respondDomainError(c *gin.Context, err error, message string) {
	var vErr *domain.ValidationError
	var cErr *domain.ConflictError

	switch {
	case errors.As(err, &vErr):
		respondValidationError(c, vErr.Error())
	case errors.As(err, &cErr):
		respondWithError(c, http.StatusConflict, errCodeConflict, "Subscription already exists", cErr.Error())
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		respondNotFound(c, "Subscription not found")
	case errors.Is(err, domain.ErrDeliveryNotFound):
		respondNotFound(c, "Delivery not found")
	default:
		respondInternalError(c, err, message)
	}
}
