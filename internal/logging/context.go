package logging

import (
	"context"
	"log/slog"
)

type contextKey int

const (
	callIDKey contextKey = iota
	groupIDKey
	agentIDKey
	correlationIDKey
)

// WithCallID returns a context carrying the call record identifier.
func WithCallID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, callIDKey, id)
}

// WithGroupID returns a context carrying the call group identifier.
func WithGroupID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, groupIDKey, id)
}

// WithAgentID returns a context carrying the acting agent identifier.
func WithAgentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, agentIDKey, id)
}

// WithCorrelationID returns a context carrying a request correlation identifier.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := ctx.Value(callIDKey).(int64); ok {
		fields = append(fields, slog.Int64(FieldCallID, id))
	}
	if id, ok := ctx.Value(groupIDKey).(int64); ok {
		fields = append(fields, slog.Int64(FieldGroupID, id))
	}
	if id, ok := ctx.Value(agentIDKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldAgentID, id))
	}
	if id, ok := ctx.Value(correlationIDKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldCorrelationID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
