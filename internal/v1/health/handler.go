// Package health exposes liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/TheZedxD/HomeGameServer/internal/v1/bus"
	"github.com/TheZedxD/HomeGameServer/internal/v1/logging"
)

// SchedulerInfo is the clock telemetry the readiness probe reports.
type SchedulerInfo interface {
	SkippedTicks() uint64
}

// Handler serves the health check endpoints.
type Handler struct {
	redisService *bus.Service
	scheduler    SchedulerInfo
}

// NewHandler wires the probe dependencies. Either may be nil.
func NewHandler(redisService *bus.Service, scheduler SchedulerInfo) *Handler {
	return &Handler{
		redisService: redisService,
		scheduler:    scheduler,
	}
}

// LivenessResponse is the body of GET /health/live.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse is the body of GET /health/ready.
type ReadinessResponse struct {
	Status       string            `json:"status"`
	Checks       map[string]string `json:"checks"`
	SkippedTicks uint64            `json:"skippedTicks"`
	Timestamp    string            `json:"timestamp"`
}

// Liveness returns 200 whenever the process is alive; no dependency checks.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness returns 200 only when every dependency is healthy, 503
// otherwise.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	redisStatus := h.checkRedis(ctx)
	checks["redis"] = redisStatus
	if redisStatus != "healthy" {
		allHealthy = false
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	var skipped uint64
	if h.scheduler != nil {
		skipped = h.scheduler.SkippedTicks()
	}

	c.JSON(statusCode, ReadinessResponse{
		Status:       status,
		Checks:       checks,
		SkippedTicks: skipped,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
}

// checkRedis pings Redis. Single-instance mode reports healthy.
func (h *Handler) checkRedis(ctx context.Context) string {
	if h.redisService == nil {
		return "healthy"
	}
	if err := h.redisService.Ping(ctx); err != nil {
		logging.Error(ctx, "Redis health check failed", zap.Error(err))
		return "unhealthy"
	}
	return "healthy"
}
