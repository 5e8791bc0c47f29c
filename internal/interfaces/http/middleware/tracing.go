// Package middleware provides HTTP middleware for the ledger API.
package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/pharmapos/backend/internal/infrastructure/logger"
	"github.com/pharmapos/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const spanAttrStatusText = "http.response.status_text"

// MaxScopeIDLength is the maximum length accepted for owner and organization header ids
const MaxScopeIDLength = 64

var scopeIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// TracingConfig holds configuration for the tracing middleware
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// TracingWithConfig starts a server span per request through otelgin.
// Span names follow "METHOD route", e.g. "GET /api/v1/ledger/funding/lineage/:id".
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanEnricher completes the request span once the handler chain has run, when the
// ledger scope is known: request id, owner and organization, and error status for
// 4xx and 5xx responses. It must run inside the tracing middleware. otelgin resets the
// status description of 5xx spans after this returns, so the status text is also kept
// as the http.response.status_text attribute.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		if id := c.GetString(logger.GinRequestIDKey); id != "" {
			span.SetAttributes(attribute.String(telemetry.SpanAttrRequestID, id))
		}
		owner, org := spanScope(c)
		if owner != "" {
			span.SetAttributes(attribute.String(telemetry.SpanAttrOwnerID, owner))
		}
		if org != "" {
			span.SetAttributes(attribute.String(telemetry.SpanAttrOrganizationID, org))
		}

		status := c.Writer.Status()
		if status >= http.StatusBadRequest {
			text := http.StatusText(status)
			span.SetStatus(codes.Error, text)
			span.SetAttributes(
				attribute.Int("http.response.status_code", status),
				attribute.String(spanAttrStatusText, text),
			)
		}
	}
}

// spanScope prefers the resolved ledger scope, then JWT claims, then validated headers
func spanScope(c *gin.Context) (owner, org string) {
	if scope, ok := GetLedgerScope(c); ok {
		return scope.OwnerID, scope.OrganizationID
	}
	owner = GetJWTUserID(c)
	org = GetJWTOrganizationID(c)
	if owner == "" {
		if h := c.GetHeader(OwnerIDHeader); isValidScopeID(h) {
			owner = h
		}
	}
	if org == "" {
		if h := c.GetHeader(OrganizationIDHeader); isValidScopeID(h) {
			org = h
		}
	}
	return owner, org
}

// isValidScopeID rejects oversized or oddly shaped header ids
func isValidScopeID(id string) bool {
	if id == "" || len(id) > MaxScopeIDLength {
		return false
	}
	return scopeIDPattern.MatchString(id)
}
