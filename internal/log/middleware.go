package log

import (
	"context"
	"log/slog"
	"net/http"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// NewContext returns ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// Middleware creates HTTP middleware that adds a logger to the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// RequestIDMiddleware adds request ID to logger context
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := extractRequestID(r)
			logger := FromContext(r.Context()).With(FieldRequestID, requestID)
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogTransactionChange logs a successful ledger mutation
func (sl *StructuredLogger) LogTransactionChange(ctx context.Context, op, userID string, tx TransactionInfo, demo bool) {
	fields := NewFields().
		WithUser(userID).
		WithRecord("transactions", tx.ID).
		WithTransaction(tx.Type, tx.Amount, tx.Category).
		WithOperation(op).
		WithComponent(ComponentLedger).
		ToSlice()
	fields = append(fields, FieldDemo, demo)

	sl.logger.Logger.InfoContext(ctx, "Transaction "+op+"d", fields...)
}

// TransactionInfo is the loggable subset of a transaction.
type TransactionInfo struct {
	ID       string
	Type     string
	Amount   float64
	Category string
}

// LogAuthEvent records a session transition.
func (sl *StructuredLogger) LogAuthEvent(ctx context.Context, op, userID, provider string, err error) {
	fields := NewFields().
		WithUser(userID).
		WithOperation(op).
		WithComponent(ComponentAuth).
		WithError(err)
	fields[FieldAuthProvider] = provider

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	sl.logger.Logger.Log(ctx, level, "Auth "+op, fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation).
		WithComponent(component)

	sl.logger.Logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
