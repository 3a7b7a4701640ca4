package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Tesseract-Nexus/go-shared/cache"
	"github.com/gin-gonic/gin"
)

const (
	serviceName    = "catalogue-service"
	serviceVersion = "1.0.0"
)

// HealthCheck provides a liveness endpoint
// @Summary Health check
// @Description Check if the service is running
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"version":   serviceVersion,
		"timestamp": time.Now().UTC(),
	})
}

// Dependencies reports the state of the database and cache
type Dependencies interface {
	Ping(ctx context.Context) error
	RedisHealth(ctx context.Context) error
	CacheStats() *cache.CacheStats
}

type HealthHandler struct {
	deps Dependencies
}

func NewHealthHandler(deps Dependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// ReadinessCheck checks the database and cache
// @Summary Readiness check
// @Description Check if the service is ready to handle requests
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	status, code := "ready", http.StatusOK

	if err := h.deps.Ping(ctx); err != nil {
		checks["database"] = gin.H{"status": "unhealthy", "error": err.Error()}
		status, code = "unhealthy", http.StatusServiceUnavailable
	} else {
		checks["database"] = gin.H{"status": "healthy"}
	}

	// the catalogue works without redis, only slower
	if err := h.deps.RedisHealth(ctx); err != nil {
		checks["redis"] = gin.H{"status": "unhealthy", "error": err.Error()}
		if code == http.StatusOK {
			status = "degraded"
		}
	} else {
		redis := gin.H{"status": "healthy"}
		if stats := h.deps.CacheStats(); stats != nil {
			redis["l1Hits"] = stats.L1Hits
			redis["l1Misses"] = stats.L1Misses
			redis["l2Hits"] = stats.L2Hits
			redis["l2Misses"] = stats.L2Misses
		}
		checks["redis"] = redis
	}

	c.JSON(code, gin.H{
		"status":    status,
		"service":   serviceName,
		"version":   serviceVersion,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}
