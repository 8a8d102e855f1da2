package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ios-sistema/presenca-api/internal/service"
	"github.com/ios-sistema/presenca-api/pkg/response"
)

// DashboardHandler exposes the landing screen counters.
type DashboardHandler struct {
	dashboardService *service.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// Summary godoc
// @Summary Dashboard counters for the caller
// @Description Totals are scoped to the caller's visible classes and cached per user
// @Tags dashboard
// @Produce json
// @Success 200 {object} response.Envelope{data=service.Dashboard}
// @Security BearerAuth
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	dashboard, err := h.dashboardService.Summary(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}
