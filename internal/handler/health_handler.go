package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/container"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	container *container.Container
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(container *container.Container) *HealthHandler {
	return &HealthHandler{
		container: container,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Version     string            `json:"version"`
	Service     string            `json:"service"`
	Competition string            `json:"competition"`
	Checks      map[string]string `json:"checks"`
	Clients     int               `json:"clients"`
	Pending     int               `json:"pending_updates"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now().UTC(),
		Version:     Version,
		Service:     "robotics-scrimmage-manager",
		Competition: h.container.GetConfig().CompetitionName,
		Checks:      map[string]string{},
		Clients:     h.container.Hub.ClientCount(),
	}

	if err := h.container.Store.Health(ctx); err != nil {
		logger.WithError(err).Warn("Database health check failed")
		response.Status = "unhealthy"
		response.Checks["database"] = "down"
	} else {
		response.Checks["database"] = "up"
	}

	// redis is optional, so losing it only degrades fan-out
	if h.container.HasRedis() {
		if err := h.container.GetRedisClient().Health(ctx); err != nil {
			logger.WithError(err).Warn("Redis health check failed")
			if response.Status == "healthy" {
				response.Status = "degraded"
			}
			response.Checks["redis"] = "down"
		} else {
			response.Checks["redis"] = "up"
		}
	}

	if pending, err := h.container.Services.Updates.GetPendingUpdateCount(ctx); err == nil {
		response.Pending = pending
	}

	status := http.StatusOK
	if response.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, logger, status, response, "")
}
