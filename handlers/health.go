package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthTimeout = 3 * time.Second

// PingFunc reports whether a dependency is reachable.
type PingFunc func(ctx context.Context) error

type DependencyStatus struct {
	Status         string `json:"status"`
	ResponseTimeMs int64  `json:"response_time_ms,omitempty"`
	Error          string `json:"error,omitempty"`
}

// HealthHandler pings the record store and, when configured, object storage and the rate limiter's Redis.
type HealthHandler struct {
	recordStore   PingFunc
	objectStorage PingFunc
	cache         PingFunc
}

// NewHealthHandler takes the record store check and optional checks; nil means not configured.
func NewHealthHandler(recordStore, objectStorage, cache PingFunc) *HealthHandler {
	return &HealthHandler{recordStore: recordStore, objectStorage: objectStorage, cache: cache}
}

func check(ctx context.Context, ping PingFunc) DependencyStatus {
	if ping == nil {
		return DependencyStatus{Status: "not_configured"}
	}
	start := time.Now()
	err := ping(ctx)
	status := DependencyStatus{Status: "healthy", ResponseTimeMs: time.Since(start).Milliseconds()}
	if err != nil {
		status.Status = "unhealthy"
		status.Error = err.Error()
	}
	return status
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	deps := gin.H{}
	healthy := true
	for name, ping := range map[string]PingFunc{
		"record_store":   h.recordStore,
		"object_storage": h.objectStorage,
		"cache":          h.cache,
	} {
		status := check(ctx, ping)
		if status.Status == "unhealthy" {
			healthy = false
		}
		deps[name] = status
	}

	code := http.StatusOK
	deps["status"] = "healthy"
	if !healthy {
		code = http.StatusServiceUnavailable
		deps["status"] = "unhealthy"
	}
	c.JSON(code, deps)
}
