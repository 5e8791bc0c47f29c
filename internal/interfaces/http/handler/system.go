package handler

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pharmapos/backend/internal/infrastructure/logger"
	"github.com/pharmapos/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// DependencyCheck reports whether a backing service of the ledger is reachable
type DependencyCheck func(ctx context.Context) error

type dependency struct {
	name  string
	check DependencyCheck
}

// SystemHandler serves the unauthenticated system endpoints
type SystemHandler struct {
	BaseHandler
	name         string
	startTime    time.Time
	checkTimeout time.Duration
	dependencies []dependency
}

// SystemOption configures a SystemHandler
type SystemOption func(*SystemHandler)

// WithServiceName sets the name reported by the info endpoint
func WithServiceName(name string) SystemOption {
	return func(h *SystemHandler) {
		if name != "" {
			h.name = name
		}
	}
}

// WithDependencyCheck adds a backing service to the health and info endpoints
func WithDependencyCheck(name string, check DependencyCheck) SystemOption {
	return func(h *SystemHandler) {
		h.dependencies = append(h.dependencies, dependency{name: name, check: check})
	}
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(opts ...SystemOption) *SystemHandler {
	h := &SystemHandler{
		name:         "PharmaPOS Ledger API",
		startTime:    time.Now(),
		checkTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SystemInfoResponse represents the system information response
// @name HandlerSystemInfoResponse
type SystemInfoResponse struct {
	Name         string            `json:"name" example:"PharmaPOS Ledger API"`
	GoVersion    string            `json:"go_version" example:"go1.25.5"`
	Uptime       string            `json:"uptime" example:"1h30m45s"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthResponse is the body of the health endpoint
type HealthResponse struct {
	Status       string            `json:"status" example:"healthy"`
	Time         string            `json:"time" example:"2026-03-01T12:00:00Z"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// GetSystemInfo godoc
// @ID           getSystemSystemInfo
// @Summary      Get system information
// @Description  Returns the service name, uptime and the state of its backing services
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=SystemInfoResponse}
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	deps, _ := h.checkDependencies(c)
	h.Success(c, SystemInfoResponse{
		Name:         h.name,
		GoVersion:    runtime.Version(),
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Dependencies: deps,
	})
}

// Health reports 200 when every backing service answers and 503 otherwise.
// The body is not wrapped in the API envelope so load balancers can read it directly.
func (h *SystemHandler) Health(c *gin.Context) {
	deps, healthy := h.checkDependencies(c)
	resp := HealthResponse{
		Status:       "healthy",
		Time:         time.Now().UTC().Format(time.RFC3339),
		Dependencies: deps,
	}
	status := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// PingResponse represents the ping response
// @name HandlerPingResponse
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Ping godoc
// @ID           pingSystem
// @Summary      Ping the API
// @Description  Simple ping endpoint to check if the API is responsive
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=PingResponse}
// @Router       /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(PingResponse{
		Message:   "pong",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}))
}

func (h *SystemHandler) checkDependencies(c *gin.Context) (map[string]string, bool) {
	if len(h.dependencies) == 0 {
		return nil, true
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.checkTimeout)
	defer cancel()

	results := make(map[string]string, len(h.dependencies))
	healthy := true
	for _, dep := range h.dependencies {
		if err := dep.check(ctx); err != nil {
			logger.FromContext(ctx).Warn("Dependency check failed", zap.String("dependency", dep.name), zap.Error(err))
			results[dep.name] = "error"
			healthy = false
			continue
		}
		results[dep.name] = "ok"
	}
	return results, healthy
}

// DependencyNames lists the registered checks in name order
func (h *SystemHandler) DependencyNames() []string {
	names := make([]string, 0, len(h.dependencies))
	for _, dep := range h.dependencies {
		names = append(names, dep.name)
	}
	sort.Strings(names)
	return names
}
