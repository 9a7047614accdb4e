package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stokmanager/internal/metrics"
	"stokmanager/internal/store"
)

const healthTimeout = 3 * time.Second

type HealthHandler struct {
	store   store.Store
	metrics *metrics.Tracker
}

func NewHealthHandler(s store.Store, tracker *metrics.Tracker) *HealthHandler {
	return &HealthHandler{store: s, metrics: tracker}
}

func (h *HealthHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/api/metrics", h.Metrics)
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": "Store connection failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "Service is running",
	})
}

func (h *HealthHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    h.metrics.Snapshot(),
	})
}
