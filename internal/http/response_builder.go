// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for JSON responses, so every
// handler answers with the same envelope and content type.

package http

import (
	"encoding/json"
	"net/http"

	"pocketplan/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
// Fields set with Set are merged into one object; Body replaces it.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	fields     map[string]any
	body       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
		fields:     make(map[string]any),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Set adds a top-level field to the response object.
func (b *JSONResponseBuilder) Set(key string, value any) *JSONResponseBuilder {
	b.fields[key] = value
	return b
}

// Body sends v as the whole response, ignoring Set fields.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Notification attaches the ledger outcome shown to the user.
func (b *JSONResponseBuilder) Notification(n services.Notification) *JSONResponseBuilder {
	return b.Set("notification", n)
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}

	payload := b.body
	if payload == nil {
		payload = b.fields
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// ErrorResponse creates the standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Set("error", message)
}

// FailedNotification reports a ledger failure with its notification. The
// notification keeps the store message; the error field follows writeError.
func FailedNotification(n services.Notification) *JSONResponseBuilder {
	status := statusFor(n.Err)
	return ErrorResponse(status, publicMessage(status, n.Message)).Notification(n)
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message).Header("WWW-Authenticate", `Bearer realm="pocketplan"`)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// ValidationError lists the failing rule per JSON field.
func ValidationError(fields map[string]string) *JSONResponseBuilder {
	return BadRequestError("validation failed").Set("fields", fields)
}
