// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and give clients a stable, machine-readable
// taxonomy that supplements the human-readable message. Every error response
// carries an HTTP status and one of these codes:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "remote_write_failed",
//	  "message": "remote request failed"
//	}
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-merchant-directory/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidation       = "validation_failed"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeTooLarge         = "payload_too_large"

	// Domain-specific:
	ErrCodeRemoteWriteFailed  = "remote_write_failed"
	ErrCodeRemoteUnavailable  = "remote_unavailable"
	ErrCodeStorageUnavailable = "storage_unavailable"
	ErrCodeUploadFailed       = "upload_failed"
	ErrCodeTimeout            = "timeout"
)

// failService maps a service error onto the error envelope. Errors no
// sentinel matches are reported with the given fallback status and code.
func failService(c *gin.Context, err error, status int, code string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	case errors.Is(err, services.ErrMerchantNotFound),
		errors.Is(err, services.ErrMenuItemNotFound),
		errors.Is(err, services.ErrMenuImageNotFound),
		errors.Is(err, services.ErrRecommendationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	case errors.Is(err, services.ErrRemoteRequestFailed):
		fail(c, http.StatusBadGateway, ErrCodeRemoteWriteFailed, err.Error())
	case errors.Is(err, services.ErrRemoteUnavailable):
		fail(c, http.StatusConflict, ErrCodeRemoteUnavailable, err.Error())
	case errors.Is(err, services.ErrBlobsUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeStorageUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusGatewayTimeout, ErrCodeTimeout, "request timed out")
	default:
		fail(c, status, code, err.Error())
	}
}
