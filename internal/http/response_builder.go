// Package http provides the JSON API server and its handlers.
//
// This file implements a small builder for JSON responses and the mapping
// from service errors to status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"finreport/internal/api"
	"finreport/internal/core"
	applog "finreport/internal/log"
	"finreport/internal/middleware/trace"
	"finreport/internal/services"
	"finreport/internal/storage"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode JSON response", "component", "http", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(data)
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewJSONResponse().Status(statusCode).JSON(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnauthorizedError creates a 401 Unauthorized error response.
func UnauthorizedError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message).Header("WWW-Authenticate", "Bearer")
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *ResponseBuilder {
	b := ErrorResponse(http.StatusMethodNotAllowed, "method not allowed")
	if allowedMethods != "" {
		b.Header("Allow", allowedMethods)
	}
	return b
}

// TooManyRequestsError creates a 429 Too Many Requests error response.
func TooManyRequestsError() *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

// ErrorFor maps an error returned by the services to a response.
func ErrorFor(err error) *ResponseBuilder {
	var (
		verr   *api.ValidationError
		apiErr *api.APIError
		perr   *paramError
		berr   *bodyError
	)
	switch {
	case errors.Is(err, api.ErrUnauthorized), errors.Is(err, api.ErrNoSession), errors.Is(err, services.ErrNoUser):
		return UnauthorizedError("authentication required")
	case errors.As(err, &verr):
		return NewJSONResponse().Status(http.StatusUnprocessableEntity).
			JSON(errorBody{Error: "validation failed", Fields: verr.Fields})
	case errors.As(err, &perr), errors.As(err, &berr):
		return BadRequestError(err.Error())
	case isDomainValidation(err):
		return UnprocessableEntityError(err.Error())
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, api.ErrNotFound):
		return NotFoundError("not found")
	case errors.As(err, &apiErr):
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.Status)
		}
		return ErrorResponse(apiErr.Status, msg)
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse(http.StatusGatewayTimeout, "backend timed out")
	default:
		return InternalServerError("internal server error")
	}
}

func isDomainValidation(err error) bool {
	for _, target := range []error{
		core.ErrInvalidYear, core.ErrInvalidMonth, core.ErrInvalidDate,
		core.ErrInvalidAmount, core.ErrEmptyCategory, core.ErrInvalidCategory,
		core.ErrEmptyDescription,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeError logs server-side failures and writes the mapped response.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	b := ErrorFor(err)
	if b.statusCode >= http.StatusInternalServerError {
		fields := applog.NewFields().
			WithRequestID(trace.GetRequestID(r.Context())).
			WithErrorType(errorType(b.statusCode))
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, fields)
	} else {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
			applog.FieldOperation, op, applog.FieldStatusCode, b.statusCode, applog.FieldError, err)
	}
	b.Write(w)
}

func errorType(status int) string {
	switch status {
	case http.StatusGatewayTimeout:
		return applog.ErrorTypeTimeout
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return applog.ErrorTypeNetwork
	default:
		return applog.ErrorTypeInternal
	}
}
