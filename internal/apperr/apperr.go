// Package apperr provides the standardized error shape returned by the
// HTTP API (POST /api/create-lobby and its rate limit).
//
// Error taxonomy: configuration errors are fatal at startup and never
// reach this package. Upstream-parse, Twitch-auth-terminal,
// Twitch-transient, subscriber-slow and downstream-send failures are all
// handled in place by the owning agent and logged, not raised as AppError.
// An unknown lobby on the WebSocket path is reported as a SystemError frame
// by the gateway, not as an AppError.
package apperr

import (
	"fmt"
	"net/http"
)

// AppError is a machine-readable error with an HTTP status mapping.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorResponse is the JSON body returned for any failed request:
// `{ "error": string, "status": number }`.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

const (
	CodeBadRequest        = "BAD_REQUEST"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeNotFound          = "NOT_FOUND"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeInternal          = "INTERNAL_SERVER_ERROR"
	CodeUnavailable       = "SERVICE_UNAVAILABLE"
)

func statusFor(code string) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusFor(code)}
}

func Wrap(code, message string, err error) *AppError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &AppError{Code: code, Message: message, Details: details, StatusCode: statusFor(code)}
}

func BadRequest(message string) *AppError { return New(CodeBadRequest, message) }

func Unauthorized(message string) *AppError { return New(CodeUnauthorized, message) }

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func RateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "too many requests, try again shortly")
}

func InternalServer(message string) *AppError { return New(CodeInternal, message) }

func Unavailable(message string) *AppError { return New(CodeUnavailable, message) }

// ToResponse converts an AppError into the wire format used by both the
// create-lobby endpoint and the generic error middleware.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Status: e.StatusCode}
}
