// Package errors provides the standardized error taxonomy of the consent pipeline.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Client-side codes
const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeIPLookupFailed   ErrorCode = "IP_LOOKUP_FAILED"
	ErrCodeRenderFailed     ErrorCode = "RENDER_FAILED"
	ErrCodeEncodingFailed   ErrorCode = "ENCODING_FAILED"

	ErrCodeDeliveryTimeout         ErrorCode = "DELIVERY_TIMEOUT"
	ErrCodeDeliveryNetworkError    ErrorCode = "DELIVERY_NETWORK_ERROR"
	ErrCodeDeliveryServerBusy      ErrorCode = "DELIVERY_SERVER_BUSY"
	ErrCodeDeliveryEndpointMissing ErrorCode = "DELIVERY_ENDPOINT_MISSING"
	ErrCodeDeliveryRejected        ErrorCode = "DELIVERY_REJECTED"
)

// Server-side codes
const (
	ErrCodeInvalidPayload   ErrorCode = "INVALID_PAYLOAD"
	ErrCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrCodeMailSendFailed   ErrorCode = "MAIL_SEND_FAILED"
	ErrCodeAlertFailed      ErrorCode = "ALERT_PUBLISH_FAILED"
	ErrCodeRateLimited      ErrorCode = "RATE_LIMITED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key to the error and returns it for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	se := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	if cause != nil {
		se.Details = cause.Error()
	}
	return se
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationFailedError creates a non-retryable validation error.
func NewValidationFailedError(details string) *StandardError {
	se := newError(ErrCodeValidationFailed, "Form validation failed", nil, false)
	se.Details = details
	return se
}

// NewIPLookupFailedError is informational; lookup failures never abort a submission.
func NewIPLookupFailedError(source string, err error) *StandardError {
	return newError(ErrCodeIPLookupFailed, fmt.Sprintf("IP lookup via %s failed", source), err, false)
}

func NewRenderFailedError(err error) *StandardError {
	return newError(ErrCodeRenderFailed, "Consent document generation failed", err, false)
}

func NewEncodingFailedError(slot string, err error) *StandardError {
	return newError(ErrCodeEncodingFailed, "Attachment encoding failed", err, false).
		WithMetadata("slot", slot)
}

// NewDeliveryTimeoutError creates a retryable timeout for one delivery attempt.
func NewDeliveryTimeoutError(err error) *StandardError {
	return newError(ErrCodeDeliveryTimeout, "Delivery attempt timed out", err, true)
}

func NewDeliveryNetworkError(err error) *StandardError {
	return newError(ErrCodeDeliveryNetworkError, "Delivery endpoint unreachable", err, true)
}

func NewDeliveryServerBusyError(status int, body string) *StandardError {
	se := newError(ErrCodeDeliveryServerBusy, "Delivery endpoint unavailable", nil, true)
	se.Details = fmt.Sprintf("status: %d, body: %s", status, body)
	return se.WithMetadata("status", status)
}

func NewDeliveryEndpointMissingError(url string) *StandardError {
	se := newError(ErrCodeDeliveryEndpointMissing, "Delivery endpoint not found", nil, false)
	se.Details = fmt.Sprintf("url: %s", url)
	return se.WithMetadata("status", 404)
}

func NewDeliveryRejectedError(status int, body string) *StandardError {
	se := newError(ErrCodeDeliveryRejected, "Delivery endpoint rejected the request", nil, false)
	se.Details = fmt.Sprintf("status: %d, body: %s", status, body)
	return se.WithMetadata("status", status)
}

func NewInvalidPayloadError(details string) *StandardError {
	se := newError(ErrCodeInvalidPayload, "Invalid submission payload", nil, false)
	se.Details = details
	return se
}

func NewMethodNotAllowedError(method, allowed string) *StandardError {
	se := newError(ErrCodeMethodNotAllowed, "Method not allowed", nil, false)
	se.Details = fmt.Sprintf("method: %s, allowed: %s", method, allowed)
	return se.WithMetadata("allow", allowed)
}

func NewMailSendFailedError(provider string, err error) *StandardError {
	return newError(ErrCodeMailSendFailed, "Email delivery failed", err, true).
		WithMetadata("provider", provider)
}

func NewAlertFailedError(err error) *StandardError {
	return newError(ErrCodeAlertFailed, "Submission alert publish failed", err, true)
}

func NewRateLimitedError(key string) *StandardError {
	se := newError(ErrCodeRateLimited, "Too many submissions", nil, true)
	se.Details = fmt.Sprintf("key: %s", key)
	return se
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err, false)
}

// ==========================
// 3. Utility Functions
// ==========================

// IsRetryable reports whether err, or a StandardError it wraps, is retryable.
func IsRetryable(err error) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// CodeOf extracts the code of a wrapped StandardError.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "DELIVERY"):
		return "DELIVERY"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case code == ErrCodeRenderFailed || code == ErrCodeEncodingFailed:
		return "PREPARATION"
	case strings.Contains(codeStr, "MAIL") || strings.Contains(codeStr, "ALERT"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "IP_LOOKUP"):
		return "NETWORK"
	default:
		return "OTHER"
	}
}
