package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerCtxKey ctxKey = iota
	scopeCtxKey
)

// requestScope is the set of correlation ids attached to a request context.
// It is copied on every change so contexts never share a mutable value.
type requestScope struct {
	requestID      string
	ownerID        string
	organizationID string
}

func (s requestScope) fields() []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if s.requestID != "" {
		fields = append(fields, zap.String("request_id", s.requestID))
	}
	if s.ownerID != "" {
		fields = append(fields, zap.String("owner_id", s.ownerID))
	}
	if s.organizationID != "" {
		fields = append(fields, zap.String("organization_id", s.organizationID))
	}
	return fields
}

func scopeFrom(ctx context.Context) requestScope {
	s, _ := ctx.Value(scopeCtxKey).(requestScope)
	return s
}

// WithContext stores logger in ctx
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

// FromContext returns the logger stored in ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerCtxKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// update applies change to the scope in ctx and stores logger, tagged with
// the single new field, as the context logger.
func update(ctx context.Context, logger *zap.Logger, field zap.Field, change func(*requestScope)) (context.Context, *zap.Logger) {
	s := scopeFrom(ctx)
	change(&s)
	tagged := logger.With(field)
	ctx = context.WithValue(ctx, scopeCtxKey, s)
	return WithContext(ctx, tagged), tagged
}

// WithRequestID records the request id in ctx and returns the tagged logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return update(ctx, logger, zap.String("request_id", requestID), func(s *requestScope) { s.requestID = requestID })
}

// WithOwnerID records the ledger owner in ctx and returns the tagged logger
func WithOwnerID(ctx context.Context, logger *zap.Logger, ownerID string) (context.Context, *zap.Logger) {
	return update(ctx, logger, zap.String("owner_id", ownerID), func(s *requestScope) { s.ownerID = ownerID })
}

// WithOrganizationID records the organization scope in ctx and returns the tagged logger
func WithOrganizationID(ctx context.Context, logger *zap.Logger, organizationID string) (context.Context, *zap.Logger) {
	return update(ctx, logger, zap.String("organization_id", organizationID), func(s *requestScope) { s.organizationID = organizationID })
}

func GetRequestID(ctx context.Context) string      { return scopeFrom(ctx).requestID }
func GetOwnerID(ctx context.Context) string        { return scopeFrom(ctx).ownerID }
func GetOrganizationID(ctx context.Context) string { return scopeFrom(ctx).organizationID }

// ContextLogger writes entries through a base logger, adding the correlation
// ids and the active span of ctx at the moment each entry is written.
type ContextLogger struct {
	ctx    context.Context
	logger *zap.Logger
}

// WithLogger binds logger to ctx. Services hold their own logger and use this
// so entries still carry the request correlation ids.
func WithLogger(ctx context.Context, logger *zap.Logger) *ContextLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextLogger{ctx: ctx, logger: logger}
}

// With returns a child ContextLogger with extra fields
func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	return &ContextLogger{ctx: cl.ctx, logger: cl.logger.With(fields...)}
}

// Zap returns the base logger tagged with the context fields
func (cl *ContextLogger) Zap() *zap.Logger {
	fields := scopeFrom(cl.ctx).fields()
	if sc := trace.SpanContextFromContext(cl.ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if len(fields) == 0 {
		return cl.logger
	}
	return cl.logger.With(fields...)
}

func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) { cl.Zap().Debug(msg, fields...) }
func (cl *ContextLogger) Info(msg string, fields ...zap.Field)  { cl.Zap().Info(msg, fields...) }
func (cl *ContextLogger) Warn(msg string, fields ...zap.Field)  { cl.Zap().Warn(msg, fields...) }
func (cl *ContextLogger) Error(msg string, fields ...zap.Field) { cl.Zap().Error(msg, fields...) }
