package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/simples-nacional/internal/models"
	"github.com/nexconsult/simples-nacional/internal/services"
	"github.com/sirupsen/logrus"
)

// CacheHandler exposes the persisted result cache
type CacheHandler struct {
	simplesService services.SimplesServiceInterface
	logger         *logrus.Logger
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(simplesService services.SimplesServiceInterface, logger *logrus.Logger) *CacheHandler {
	return &CacheHandler{
		simplesService: simplesService,
		logger:         logger,
	}
}

// GetStats handles cache statistics request
// @Summary Get cache statistics
// @Description Count cached results and how many are still fresh
// @Tags Cache
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} models.ErrorResponse
// @Router /cache/stats [get]
func (h *CacheHandler) GetStats(c *gin.Context) {
	requestID := c.GetString("request_id")

	stats, err := h.simplesService.CacheStats(c.Request.Context())
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to get cache statistics")

		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:     "Service unavailable",
			Message:   "Failed to retrieve cache statistics",
			Code:      models.ErrorCodeCacheError,
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":     stats,
		"ttl_days":  int(stats.TTL / (24 * time.Hour)),
		"timestamp": time.Now(),
	})
}
