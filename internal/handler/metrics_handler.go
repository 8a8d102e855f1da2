package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ios-sistema/presenca-api/internal/service"
)

// MetricsHandler serves the Prometheus scrape endpoint.
type MetricsHandler struct {
	metricsService *service.MetricsService
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(metricsService *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metricsService: metricsService}
}

// Metrics godoc
// @Summary Prometheus metrics
// @Tags observability
// @Produce plain
// @Success 200 {string} string "metrics in Prometheus exposition format"
// @Router /metrics [get]
func (h *MetricsHandler) Metrics(c *gin.Context) {
	gin.WrapH(h.metricsService.Handler())(c)
}
