// internal/logging/context.go
package logging

import (
	"context"

	"go.uber.org/zap"
)

// Context key types
type unitCtxKey struct{}
type taskCtxKey struct{}
type requestCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	if fp := UnitFromContext(ctx); fp != "" {
		fields = append(fields, zap.String("unit.fingerprint", fp))
	}
	if taskID := TaskIDFromContext(ctx); taskID != "" {
		fields = append(fields, zap.String("task.id", taskID))
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

// WithUnit attaches a remediation-unit fingerprint to the context.
func WithUnit(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, unitCtxKey{}, fingerprint)
}

// UnitFromContext returns the unit fingerprint, or "" if absent.
func UnitFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(unitCtxKey{}).(string); ok {
		return v
	}
	return ""
}

// WithTaskID attaches a task ID to the context.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskCtxKey{}, taskID)
}

// TaskIDFromContext returns the task ID, or "" if absent.
func TaskIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(taskCtxKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID attaches a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext returns the request ID, or "" if absent.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return v
	}
	return ""
}
