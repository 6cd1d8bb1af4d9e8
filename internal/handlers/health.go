package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger is a dependency that can report its connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueChecker reports broker connectivity
type QueueChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthChecker handles health check requests
type HealthChecker struct {
	store  Pinger
	queue  QueueChecker
	logger *zap.Logger
}

// NewHealthChecker creates a new health checker. queue is nil in inline mode.
func NewHealthChecker(store Pinger, queue QueueChecker, log *zap.Logger) *HealthChecker {
	return &HealthChecker{store: store, queue: queue, logger: log}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if r.URL.Query().Get("mode") == "extended" {
		checks := make(map[string]string)

		if err := h.check(r.Context(), h.store.Ping); err != nil {
			response.Status = "unhealthy"
			checks["storage"] = "unhealthy: " + sanitizeErrorMessage(err.Error())
		} else {
			checks["storage"] = "healthy"
		}

		if h.queue != nil {
			if err := h.check(r.Context(), h.queue.HealthCheck); err != nil {
				response.Status = "unhealthy"
				checks["queue"] = "unhealthy: " + sanitizeErrorMessage(err.Error())
			} else {
				checks["queue"] = "healthy"
			}
		}

		response.Checks = checks
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
			h.logger.Warn("health_check_failed", zap.Any("checks", checks))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed_to_encode_health_response", zap.Error(err))
	}
}

func (h *HealthChecker) check(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return fn(ctx)
}
