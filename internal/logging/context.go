package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type runCtxKey struct{}
type accountCtxKey struct{}
type repositoryCtxKey struct{}
type loggerCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := RunIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("run.id", id))
	}
	if account := AccountFromContext(ctx); account != "" {
		fields = append(fields, zap.String("account", account))
	}
	if repo := RepositoryFromContext(ctx); repo != "" {
		fields = append(fields, zap.String("repository", repo))
	}
	return fields
}

// WithRunID tags every log line of one pipeline run.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, id)
}

// RunIDFromContext returns the run ID, or "".
func RunIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(runCtxKey{}).(string)
	return s
}

// WithAccount records the account login being crawled.
func WithAccount(ctx context.Context, login string) context.Context {
	return context.WithValue(ctx, accountCtxKey{}, login)
}

// AccountFromContext returns the account login, or "".
func AccountFromContext(ctx context.Context) string {
	s, _ := ctx.Value(accountCtxKey{}).(string)
	return s
}

// WithRepository records the owner/name of the repository being processed.
func WithRepository(ctx context.Context, fullName string) context.Context {
	return context.WithValue(ctx, repositoryCtxKey{}, fullName)
}

// RepositoryFromContext returns the repository full name, or "".
func RepositoryFromContext(ctx context.Context) string {
	s, _ := ctx.Value(repositoryCtxKey{}).(string)
	return s
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
