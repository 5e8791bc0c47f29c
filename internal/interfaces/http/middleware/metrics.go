package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pharmapos/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetricsConfig holds configuration for HTTP metrics middleware.
type HTTPMetricsConfig struct {
	Providers *telemetry.Providers
	Enabled   bool
}

// AttrErrorCode is the API error code of a failed ledger request
var AttrErrorCode = attribute.Key("error_code")

type httpMetrics struct {
	requests *telemetry.Counter
	latency  *telemetry.Histogram
	inFlight metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	requests, err := telemetry.NewCounter(meter,
		"ledger_http_requests_total",
		"Ledger API requests by route, status and error code",
		"{request}",
	)
	if err != nil {
		return nil, err
	}
	latency, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "ledger_http_request_duration_seconds",
		Description: "Ledger API latency in seconds",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	inFlight, err := meter.Int64UpDownCounter("ledger_http_requests_in_flight",
		metric.WithDescription("Ledger API requests currently being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	return &httpMetrics{requests: requests, latency: latency, inFlight: inFlight}, nil
}

// HTTPMetrics counts and times every request. Requests that failed carry the
// error code recorded through SetErrorCode. Owner IDs never become attributes.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.Providers == nil || !cfg.Providers.MetricsEnabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(cfg.Providers.Meter("ledger.http"), true)
}

// HTTPMetricsWithMeter is HTTPMetrics on an existing meter.
func HTTPMetricsWithMeter(meter metric.Meter, enabled bool) gin.HandlerFunc {
	if !enabled {
		return passThrough
	}
	m, err := newHTTPMetrics(meter)
	if err != nil {
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		routeAttrs := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(route),
		}

		m.inFlight.Add(ctx, 1, metric.WithAttributes(routeAttrs...))
		c.Next()
		m.inFlight.Add(ctx, -1, metric.WithAttributes(routeAttrs...))

		status := c.Writer.Status()
		attrs := append([]attribute.KeyValue{
			telemetry.AttrHTTPStatusCode.Int(status),
			attribute.String("http.status_class", statusClass(status)),
		}, routeAttrs...)
		if org := metricsOrganization(c); org != "" {
			attrs = append(attrs, telemetry.AttrOrganizationID.String(org))
		}
		if code := c.GetString(ErrorCodeKey); code != "" {
			attrs = append(attrs, AttrErrorCode.String(code))
		}
		m.requests.Inc(ctx, attrs...)
		m.latency.RecordDuration(ctx, time.Since(start), routeAttrs...)
	}
}

func passThrough(c *gin.Context) {
	c.Next()
}

func metricsOrganization(c *gin.Context) string {
	if scope, ok := GetLedgerScope(c); ok {
		return scope.OrganizationID
	}
	return GetJWTOrganizationID(c)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
