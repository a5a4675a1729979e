package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType names the machine-readable event a log line records.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldSessionID identifies one scanning session across log lines.
	FieldSessionID = "session_id"
	// FieldRequestID correlates a backend round trip with its X-Request-ID header.
	FieldRequestID = "request_id"
	// FieldChannel is the locked session channel.
	FieldChannel = "channel"
	// FieldScanAction is dispatch or cancel.
	FieldScanAction = "scan_action"
	// FieldValidationMode is strict or loose.
	FieldValidationMode = "validation_mode"
	// FieldBarcode is the raw decoded scan text.
	FieldBarcode = "barcode"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID annotates ctx with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithContext returns a logger augmented with fields derived from ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if id, ok := RequestIDFromContext(ctx); ok {
		return logger.With(slog.String(FieldRequestID, id))
	}
	return logger
}
