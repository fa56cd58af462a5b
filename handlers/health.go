package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imprevi/clipgen/services"
)

// HealthHandler handles health and stats endpoints.
type HealthHandler struct {
	manager *services.Manager
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(manager *services.Manager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

// HealthCheck returns the health status of the service.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "clipgen",
		"version":   "1.0.0",
		"timestamp": time.Now().Unix(),
	})
}

// APIStatus returns the status of the API.
func (h *HealthHandler) APIStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "clipgen API is running",
	})
}

// Stats returns system-wide job and storage counters.
func (h *HealthHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Stats())
}
