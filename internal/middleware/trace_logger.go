// Package middleware holds the HTTP middleware shared by the broker routes.
package middleware

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type loggerKey struct{}

// traceFields returns trace_id and span_id fields for the span in ctx, or
// nil when ctx carries no valid span.
func traceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

// WithTraceLogger stores a logger tagged with the request's trace and span
// IDs in the request context. Requests without a span pass through untouched.
func WithTraceLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fields := traceFields(r.Context()); fields != nil {
				ctx := context.WithValue(r.Context(), loggerKey{}, logger.With(fields...))
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoggerFromContext returns the logger stored by WithTraceLogger. Without
// one, fallback is returned, tagged with the span in ctx if there is one.
func LoggerFromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return logger
	}
	if fields := traceFields(ctx); fields != nil {
		return fallback.With(fields...)
	}
	return fallback
}

// LoggerFromRequest is LoggerFromContext for r's context.
func LoggerFromRequest(r *http.Request, fallback *zap.Logger) *zap.Logger {
	return LoggerFromContext(r.Context(), fallback)
}
