package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pharmapos/backend/internal/infrastructure/telemetry"
)

// ProfilingLabels runs the rest of a ledger request under Pyroscope labels so
// CPU samples can be split by ledger area, route and organization. It belongs
// on the ledger route group after LedgerScope.
func ProfilingLabels(enabled bool) gin.HandlerFunc {
	if !enabled {
		return passThrough
	}
	return func(c *gin.Context) {
		telemetry.WithProfilingLabels(c.Request.Context(), profilingLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func profilingLabels(c *gin.Context) map[string]string {
	route := c.FullPath()
	labels := map[string]string{
		telemetry.ProfilingLabelMethod:    c.Request.Method,
		telemetry.ProfilingLabelRoute:     route,
		telemetry.ProfilingLabelOperation: ledgerArea(route),
	}
	if scope, ok := GetLedgerScope(c); ok {
		labels[telemetry.ProfilingLabelOrg] = scope.OrganizationID
	}
	return labels
}

// ledgerArea is the first fixed segment after /ledger/ in a route pattern,
// e.g. "funding" for /api/v1/ledger/funding/lineage/:id
func ledgerArea(route string) string {
	_, rest, ok := strings.Cut(route, "/ledger/")
	if !ok {
		return ""
	}
	area, _, _ := strings.Cut(rest, "/")
	if strings.HasPrefix(area, ":") || strings.HasPrefix(area, "*") {
		return ""
	}
	return area
}
