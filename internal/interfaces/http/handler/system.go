package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/erp/stocksync/internal/interfaces/http/dto"
)

// HealthCheck reports whether one dependency is reachable
type HealthCheck func(ctx context.Context) error

// SystemHandler serves health and metrics endpoints
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	version   string
	checks    map[string]HealthCheck
	timeout   time.Duration
	metrics   http.Handler
}

// NewSystemHandler creates a new SystemHandler. metrics may be nil.
func NewSystemHandler(version string, checks map[string]HealthCheck, metrics http.Handler) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		version:   version,
		checks:    checks,
		timeout:   3 * time.Second,
		metrics:   metrics,
	}
}

// RegisterRoutes registers /health and /metrics on the engine root
func (h *SystemHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/health", h.Health)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}
}

// Health runs every dependency check and answers 503 if any fails
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := dto.HealthResponse{
		Status:  "healthy",
		Checks:  make(map[string]string, len(h.checks)),
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
		Version: h.version,
	}
	status := http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	c.JSON(status, resp)
}
