package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents the standard error body returned by every handler
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Code      string                 `json:"code,omitempty"`      // machine-readable error code
	Retryable bool                   `json:"retryable,omitempty"` // caller may retry the same request later
	Details   map[string]interface{} `json:"details,omitempty"`   // additional error context
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationErrorResponse represents a validation error with field-specific details
type ValidationErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"` // field_name -> error_message
}

// Error codes shared by the HTTP handlers.
const (
	CodeValidation    = "validation_error"
	CodeUnauthorized  = "unauthorized"
	CodeNotFound      = "not_found"
	CodeConflict      = "conflict"
	CodeQuotaExceeded = "quota_exceeded"
	CodeUpstream      = "upstream_error"
	CodeUnavailable   = "service_unavailable"
	CodeNotConnected  = "linkedin_not_connected"
	CodeTooLarge      = "payload_too_large"
	CodeInternal      = "internal_error"
)

// Abort writes an ErrorResponse and stops the handler chain.
func Abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Code: code})
}

// AbortValidation writes a 400 with per-field messages.
func AbortValidation(c *gin.Context, message string, fields map[string]string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ValidationErrorResponse{
		Error:  message,
		Code:   CodeValidation,
		Fields: fields,
	})
}
