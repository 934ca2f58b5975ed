// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by all endpoints: the error
// envelope, fail() for writing it, failErr() for translating service errors,
// and ok() for success bodies.
//
// Example error response:
//
//	HTTP/1.1 503 Service Unavailable
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "storage_unavailable",
//	  "message": "compliance store unavailable"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/wa-compliance/internal/http/middleware"
	"github.com/tbourn/wa-compliance/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"invalid_phone"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"phone must be a valid international number"`
}

// fail aborts the request with the error envelope. Server errors (>=500) are
// logged with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr maps a service error onto status and code. Storage failures are
// 503 so that callers retry later and never read them as a permission; the
// underlying cause is logged, not returned.
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrStorageUnavailable):
		middleware.LoggerFrom(c).Error().Err(err).Msg("storage failure")
		fail(c, http.StatusServiceUnavailable, ErrCodeStorageUnavailable, "compliance store unavailable")
	case errors.Is(err, services.ErrInvalidCompany):
		fail(c, http.StatusBadRequest, ErrCodeInvalidCompany, "company id must be a positive integer")
	case errors.Is(err, services.ErrInvalidPhone):
		fail(c, http.StatusBadRequest, ErrCodeInvalidPhone, "phone must be a valid international number")
	case errors.Is(err, services.ErrInvalidMethod):
		fail(c, http.StatusBadRequest, ErrCodeInvalidMethod, "method must be one of: web_form, whatsapp_message, manual, test_flow")
	case errors.Is(err, services.ErrInvalidInteractionType):
		fail(c, http.StatusBadRequest, ErrCodeInvalidInteractionType, "unknown interaction type")
	case errors.Is(err, services.ErrInvalidEventType):
		fail(c, http.StatusBadRequest, ErrCodeInvalidEventType, "unknown event type")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
