// internal/logging/context.go
package logging

import (
	"context"

	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 3)

	if runID := RunIDFromContext(ctx); runID != "" {
		fields = append(fields, zap.String("run.id", runID))
	}
	if role := RoleFromContext(ctx); role != "" {
		fields = append(fields, zap.String("agent.role", role))
	}
	if workflow := WorkflowFromContext(ctx); workflow != "" {
		fields = append(fields, zap.String("run.workflow", workflow))
	}

	return fields
}

// Context key types
type runIDCtxKey struct{}
type roleCtxKey struct{}
type workflowCtxKey struct{}

// WithRunID adds the run identifier to context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDCtxKey{}, runID)
}

// RunIDFromContext extracts run ID from context.
func RunIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(runIDCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithRole tags context with the agent role currently acting.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleCtxKey{}, role)
}

// RoleFromContext extracts agent role from context.
func RoleFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(roleCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithWorkflow adds the workflow name to context.
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	return context.WithValue(ctx, workflowCtxKey{}, workflow)
}

// WorkflowFromContext extracts workflow from context.
func WorkflowFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(workflowCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// loggerCtxKey is the context key for Logger.
type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a default nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
